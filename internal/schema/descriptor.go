package schema

import (
	"encoding/json"
)

// Type is a JSON Schema primitive.
type Type string

const (
	TypeString Type = "string"
	TypeNumber Type = "number"
	TypeArray  Type = "array"
	TypeObject Type = "object"
)

// Node is one node of the machine-readable result descriptor. It marshals to
// JSON Schema and is translated by each engine into its own schema dialect.
type Node struct {
	Type        Type
	Description string
	Enum        []string
	Items       *Node
	// Properties is keyed by field name. Required lists every property in
	// declaration order and doubles as the property ordering.
	Properties map[string]*Node
	Required   []string
}

// MarshalJSON renders the node as a JSON Schema object. Objects are closed
// with additionalProperties=false so strict structured-output modes accept
// them unchanged.
func (n *Node) MarshalJSON() ([]byte, error) {
	out := map[string]any{"type": n.Type}
	if n.Description != "" {
		out["description"] = n.Description
	}
	if len(n.Enum) > 0 {
		out["enum"] = n.Enum
	}
	if n.Items != nil {
		out["items"] = n.Items
	}
	if n.Type == TypeObject {
		out["properties"] = n.Properties
		out["required"] = n.Required
		out["additionalProperties"] = false
	}
	return json.Marshal(out)
}

func str(desc string) *Node { return &Node{Type: TypeString, Description: desc} }

func num(desc string) *Node { return &Node{Type: TypeNumber, Description: desc} }

func enum(values []string, desc string) *Node {
	return &Node{Type: TypeString, Enum: values, Description: desc}
}

func arr(items *Node, desc string) *Node {
	return &Node{Type: TypeArray, Items: items, Description: desc}
}

type field struct {
	name string
	node *Node
}

func obj(desc string, fields ...field) *Node {
	n := &Node{
		Type:        TypeObject,
		Description: desc,
		Properties:  make(map[string]*Node, len(fields)),
		Required:    make([]string, 0, len(fields)),
	}
	for _, f := range fields {
		n.Properties[f.name] = f.node
		n.Required = append(n.Required, f.name)
	}
	return n
}

// Descriptor returns the analysis result schema. Every call builds a fresh
// tree so callers may not corrupt a shared copy.
func Descriptor() *Node {
	return obj("",
		field{"summary", str("3-4 sentence executive summary.")},
		field{"keyFindings", arr(str(""), "5-7 most important bullet point insights.")},
		field{"sentiment", enum(sentimentValues, "")},
		field{"sentimentConfidence", num("Confidence score 0-100.")},
		field{"complexityScore", num("1-10 score.")},
		field{"complexityLabel", enum(complexityValues, "")},
		field{"metrics", arr(obj("",
			field{"label", str("")},
			field{"value", str("")},
			field{"trend", enum(trendValues, "")},
		), "Specific numbers mentioned (TVL, APY, Cap, etc).")},
		field{"timeline", arr(obj("",
			field{"date", str("")},
			field{"description", str("")},
		), "Dates and events mentioned.")},
		field{"entities", arr(obj("",
			field{"name", str("")},
			field{"type", enum(entityTypeValues, "")},
		), "Key entities mentioned.")},
		field{"comparisons", arr(str(""), "Competitive comparisons found.")},
		field{"relationships", arr(obj("",
			field{"source", str("")},
			field{"target", str("")},
			field{"relation", str("")},
		), "For concept map: Entity A -> Relation -> Entity B")},
		field{"riskSignals", arr(str(""), "Warnings, risks, or caveats.")},
		field{"investorTakeaway", str("Personalized 'What This Means For You'.")},
		field{"relatedMetrics", arr(str(""), "Suggested metrics to watch.")},
		field{"questionsAnswered", arr(str(""), "Common questions this doc answers.")},
		field{"knowledgeGaps", arr(str(""), "What is missing or ambiguous.")},
		field{"credibilityScore", num("1-10 based on tone and sourcing.")},
		field{"documentType", str("Whitepaper, News, Technical Spec, etc.")},
	)
}
