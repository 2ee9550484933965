package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
)

// buildFlowChart renders a definition as a mermaid flowchart.
func buildFlowChart(def *domain.WorkflowDefinition) string {
	var sb strings.Builder

	errorClass := "fill:#FF6B6B,stroke:#C53030,stroke-width:2px,color:#fff,stroke-dasharray: 4 2,rx:10,ry:10;"
	doneClass := "fill:#4ECDC4,stroke:#1F9C8C,stroke-width:2px,color:#fff,stroke-dasharray: 4 2,rx:10,ry:10;"
	startClass := "fill:#5568FE,stroke:#3346FF,stroke-width:2px,color:#fff,stroke-dasharray: 4 2,rx:10,ry:10;"
	choiceClass := "fill:#FFD93D,stroke:#E6C200,stroke-width:2px,color:#333,stroke-dasharray: 4 2,rx:10,ry:10;"
	normalClass := "fill:#F0F4F8,stroke:#B0C4DE,stroke-width:1px,color:#333,rx:10,ry:10;"

	names := make([]string, 0, len(def.States))
	for name := range def.States {
		names = append(names, name)
	}
	sort.Strings(names)
	ids := make(map[string]string, len(names))
	for i, name := range names {
		ids[name] = fmt.Sprintf("s%d", i)
	}

	sb.WriteString("flowchart TD\n")
	for _, name := range names {
		label := escapeLabel(name)
		if _, ok := def.States[name].(*domain.ChoiceState); ok {
			sb.WriteString(fmt.Sprintf("    %s{\"%s\"}\n", ids[name], label))
		} else {
			sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", ids[name], label))
		}
	}

	caught := map[string]bool{}
	for _, name := range names {
		from := ids[name]
		switch s := def.States[name].(type) {
		case *domain.TaskState:
			if s.Next != "" {
				sb.WriteString(fmt.Sprintf("    %s --> %s\n", from, ids[s.Next]))
			}
			for _, c := range s.Catch {
				caught[c.Next] = true
				sb.WriteString(fmt.Sprintf("    %s -.->|\"%s\"| %s\n", from, escapeLabel(strings.Join(c.ErrorEquals, ", ")), ids[c.Next]))
			}
		case *domain.ChoiceState:
			for _, r := range s.Choices {
				sb.WriteString(fmt.Sprintf("    %s -->|\"%s\"| %s\n", from, escapeLabel(describeCondition(r.Condition)), ids[r.Next]))
			}
			sb.WriteString(fmt.Sprintf("    %s -->|default| %s\n", from, ids[s.Default]))
		case *domain.PassState:
			if s.Next != "" {
				sb.WriteString(fmt.Sprintf("    %s --> %s\n", from, ids[s.Next]))
			}
		}
	}

	sb.WriteString(fmt.Sprintf("    classDef errorClass %s\n", errorClass))
	sb.WriteString(fmt.Sprintf("    classDef doneClass %s\n", doneClass))
	sb.WriteString(fmt.Sprintf("    classDef startClass %s\n", startClass))
	sb.WriteString(fmt.Sprintf("    classDef choiceClass %s\n", choiceClass))
	sb.WriteString(fmt.Sprintf("    classDef normalClass %s\n", normalClass))

	for _, name := range names {
		spec := def.States[name]
		class := "normalClass"
		switch {
		case name == def.StartState:
			class = "startClass"
		case spec.StateType() == domain.StateChoice:
			class = "choiceClass"
		case caught[name] && spec.Terminal():
			class = "errorClass"
		case spec.Terminal():
			class = "doneClass"
		}
		sb.WriteString(fmt.Sprintf("    class %s %s;\n", ids[name], class))
	}
	return sb.String()
}

func describeCondition(c domain.Condition) string {
	join := func(op string, conds []domain.Condition) string {
		parts := make([]string, 0, len(conds))
		for _, sub := range conds {
			parts = append(parts, describeCondition(sub))
		}
		return "(" + strings.Join(parts, " "+op+" ") + ")"
	}
	switch {
	case len(c.And) > 0:
		return join("and", c.And)
	case len(c.Or) > 0:
		return join("or", c.Or)
	case c.Not != nil:
		return "not " + describeCondition(*c.Not)
	}
	return fmt.Sprintf("%s %s %v", c.Variable, c.Operator, c.Value)
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "#quot;")
}
