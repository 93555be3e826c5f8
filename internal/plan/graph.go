package plan

// topoSort returns the nodes in dependency order, upstream first. The walk
// is a DFS over the Requires edges with a temporary mark to detect cycles;
// a cycle is reported as a PlanningError naming the cycle path.
func topoSort(nodes []*Node) ([]*Node, error) {
	byName := make(map[string]*Node, len(nodes))
	for _, node := range nodes {
		byName[node.Name] = node
	}

	const (
		white = iota // unvisited
		gray         // on the current path
		black        // done
	)

	color := make(map[string]int, len(nodes))
	sorted := make([]*Node, 0, len(nodes))

	var visit func(node *Node, path []string) error
	visit = func(node *Node, path []string) error {
		switch color[node.Name] {
		case black:
			return nil
		case gray:
			// Close the cycle for the error message.
			cycle := append(cycleSuffix(path, node.Name), node.Name)
			return &PlanningError{Node: node.Name, Cycle: cycle}
		}

		color[node.Name] = gray
		path = append(path, node.Name)
		for _, name := range node.Requires {
			upstream, ok := byName[name]
			if !ok {
				return &PlanningError{Node: node.Name, Message: "depends on unknown node " + name}
			}
			if err := visit(upstream, path); err != nil {
				return err
			}
		}
		color[node.Name] = black
		sorted = append(sorted, node)
		return nil
	}

	for _, node := range nodes {
		if err := visit(node, nil); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}

func cycleSuffix(path []string, name string) []string {
	for i, step := range path {
		if step == name {
			return path[i:]
		}
	}
	return path
}
