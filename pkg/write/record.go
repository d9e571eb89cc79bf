package write

import (
	"github.com/orneryd/graphexec/pkg/storage"
)

// OpKind identifies the mutation a Record describes.
type OpKind int

const (
	OpCreateNode OpKind = iota
	OpCreateRelationship
	OpMergeNode
	OpMergeRelationship
	OpSetProperty
	OpSetLabel
	OpRemoveProperty
	OpRemoveLabel
	OpDeleteNode
	OpDetachDeleteNode
	OpDeleteRelationship
)

var opNames = [...]string{
	OpCreateNode:         "CreateNode",
	OpCreateRelationship: "CreateRelationship",
	OpMergeNode:          "MergeNode",
	OpMergeRelationship:  "MergeRelationship",
	OpSetProperty:        "SetProperty",
	OpSetLabel:           "SetLabel",
	OpRemoveProperty:     "RemoveProperty",
	OpRemoveLabel:        "RemoveLabel",
	OpDeleteNode:         "DeleteNode",
	OpDetachDeleteNode:   "DetachDeleteNode",
	OpDeleteRelationship: "DeleteRelationship",
}

func (k OpKind) String() string {
	if int(k) < len(opNames) {
		return opNames[k]
	}
	return "Unknown"
}

// Record is one entry of the write log. It holds what is needed to apply
// the mutation and, once captured, what is needed to undo it.
type Record struct {
	Kind OpKind

	// NodeID is the affected node, or the target of a property change when
	// OnRelationship is false.
	NodeID int64
	// RelID is the affected relationship.
	RelID          int64
	OnRelationship bool

	// Node and Edge are the entities to insert for creates.
	Node *storage.Node
	Edge *storage.Edge

	// Matched is set on merge records that found an existing entity. They
	// are logged for the record but neither applied nor undone.
	Matched bool

	// Property changes.
	Key      string
	NewValue any
	OldValue any
	HadOld   bool

	// Label changes. Labels is the operand; OldLabels and NewLabels are
	// the full label sets before and after.
	Labels    []string
	OldLabels []string
	NewLabels []string

	// Snapshots of deleted entities. DetachedEdges holds relationships a
	// detach delete removed together with the node.
	NodeSnapshot  *storage.Node
	EdgeSnapshot  *storage.Edge
	DetachedEdges []*storage.Edge

	captured bool
	// Applied reports that the mutation reached the store.
	Applied bool
}

func (r *Record) nodeKey() storage.NodeID { return storage.NodeID(storage.FormatID(r.NodeID)) }
func (r *Record) relKey() storage.EdgeID  { return storage.EdgeID(storage.FormatID(r.RelID)) }

// creates reports whether applying r inserts a new entity.
func (r *Record) creates() bool {
	switch r.Kind {
	case OpCreateNode, OpCreateRelationship:
		return true
	case OpMergeNode, OpMergeRelationship:
		return !r.Matched
	}
	return false
}

// Stats counts the committed effects of a write context, in the shape of a
// Cypher query summary.
type Stats struct {
	NodesCreated         int `json:"nodes_created"`
	NodesDeleted         int `json:"nodes_deleted"`
	RelationshipsCreated int `json:"relationships_created"`
	RelationshipsDeleted int `json:"relationships_deleted"`
	PropertiesSet        int `json:"properties_set"`
	LabelsAdded          int `json:"labels_added"`
	LabelsRemoved        int `json:"labels_removed"`
}

func (s *Stats) count(r *Record) {
	if !r.Applied {
		return
	}
	switch r.Kind {
	case OpCreateNode:
		s.NodesCreated++
		s.LabelsAdded += len(r.Node.Labels)
		s.PropertiesSet += len(r.Node.Properties)
	case OpMergeNode:
		if !r.Matched {
			s.NodesCreated++
			s.LabelsAdded += len(r.Node.Labels)
			s.PropertiesSet += len(r.Node.Properties)
		}
	case OpCreateRelationship:
		s.RelationshipsCreated++
		s.PropertiesSet += len(r.Edge.Properties)
	case OpMergeRelationship:
		if !r.Matched {
			s.RelationshipsCreated++
			s.PropertiesSet += len(r.Edge.Properties)
		}
	case OpSetProperty, OpRemoveProperty:
		s.PropertiesSet++
	case OpSetLabel:
		s.LabelsAdded += len(r.NewLabels) - len(r.OldLabels)
	case OpRemoveLabel:
		s.LabelsRemoved += len(r.OldLabels) - len(r.NewLabels)
	case OpDeleteNode:
		s.NodesDeleted++
	case OpDetachDeleteNode:
		s.NodesDeleted++
		s.RelationshipsDeleted += len(r.DetachedEdges)
	case OpDeleteRelationship:
		s.RelationshipsDeleted++
	}
}

func (s *Stats) add(o Stats) {
	s.NodesCreated += o.NodesCreated
	s.NodesDeleted += o.NodesDeleted
	s.RelationshipsCreated += o.RelationshipsCreated
	s.RelationshipsDeleted += o.RelationshipsDeleted
	s.PropertiesSet += o.PropertiesSet
	s.LabelsAdded += o.LabelsAdded
	s.LabelsRemoved += o.LabelsRemoved
}
