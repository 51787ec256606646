package core

// Reference is a placeholder for "a value another resource will have once it
// exists": either its literal identifier or one of its attributes. It never
// holds the concrete value. During assembly it is resolved structurally into
// a graph edge; during synthesis it lowers to an intrinsic-function node.
type Reference struct {
	// LogicalID of the target resource within the same stack.
	LogicalID string
	// Attribute of the target, or "" for the target's literal identifier.
	Attribute string
}

// RefTo makes a literal-identifier reference to the given logical id.
func RefTo(logicalID string) Reference {
	return Reference{LogicalID: logicalID}
}

// AttOf makes an attribute reference to the given logical id.
func AttOf(logicalID, attribute string) Reference {
	return Reference{LogicalID: logicalID, Attribute: attribute}
}

func (r Reference) String() string {
	if r.Attribute == "" {
		return r.LogicalID
	}
	return r.LogicalID + "." + r.Attribute
}
