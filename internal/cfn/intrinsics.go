package cfn

// Ref builds a {"Ref": name} intrinsic.
func Ref(name string) Value {
	return map[string]Value{"Ref": name}
}

// GetAtt builds a {"Fn::GetAtt": [logical, attribute]} intrinsic.
func GetAtt(logical, attribute string) Value {
	return map[string]Value{"Fn::GetAtt": []string{logical, attribute}}
}

// Sub builds a {"Fn::Sub": template} intrinsic.
func Sub(template string) Value {
	return map[string]Value{"Fn::Sub": template}
}

// SubMap builds a {"Fn::Sub": [template, vars]} intrinsic with named
// substitution variables.
func SubMap(template string, vars map[string]Value) Value {
	return map[string]Value{"Fn::Sub": []Value{template, vars}}
}

// Join builds a {"Fn::Join": [delimiter, parts]} intrinsic.
func Join(delimiter string, parts ...Value) Value {
	return map[string]Value{"Fn::Join": []Value{delimiter, parts}}
}
