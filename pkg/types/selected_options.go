package types

// SelectedOptions carries opaque menu-item customization chosen by the
// member (modifier groups, sizes, toppings). The cart engine never
// interprets it beyond stripping assignment metadata that UI layers
// sometimes embed alongside real options.
type SelectedOptions map[string]any

// assignment bookkeeping keys that belong in the assignment request, not
// in the stored customization payload.
var assignmentMetadataKeys = []string{
	"assignment",
	"assigned_to",
	"assignedTo",
	"members",
	"member_ids",
	"extra",
	"extra_count",
	"units_by_member",
}

// WithoutAssignmentMetadata returns a copy with assignment bookkeeping
// keys removed. A nil map stays nil.
func (o SelectedOptions) WithoutAssignmentMetadata() SelectedOptions {
	if o == nil {
		return nil
	}
	clean := make(SelectedOptions, len(o))
	for k, v := range o {
		clean[k] = v
	}
	for _, key := range assignmentMetadataKeys {
		delete(clean, key)
	}
	return clean
}
