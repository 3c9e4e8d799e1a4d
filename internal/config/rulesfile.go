// SPDX-License-Identifier: MPL-2.0

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/buildhook/buildhook/internal/cueutil"
	"github.com/buildhook/buildhook/internal/rewrite"
)

const (
	// AliasDefaultCC stands for rewrite.DefaultCCPattern in a rules file.
	AliasDefaultCC = "DEFAULT_CC"
	// AliasDefaultCXX stands for rewrite.DefaultCXXPattern in a rules file.
	AliasDefaultCXX = "DEFAULT_CXX"
)

//go:embed rules_schema.cue
var rulesSchema []byte

// ErrUnsupportedRulesFormat is returned for a rules file extension that has
// no decoder.
var ErrUnsupportedRulesFormat = errors.New("unsupported rules file format")

type (
	// Tool is one named entry of a rules file.
	Tool struct {
		Name    string   `json:"-"`
		Match   string   `json:"match"`
		Replace string   `json:"replace,omitempty"`
		Add     []string `json:"add_arguments,omitempty"`
		Remove  []string `json:"remove_arguments,omitempty"`
	}

	// RulesFile is a decoded toolchain rules file, tools in evaluation order.
	RulesFile struct {
		Path  string
		Tools []Tool
	}

	rulesDocument struct {
		Toolchain map[string]Tool `json:"toolchain"`
		Order     []string        `json:"order,omitempty"`
	}
)

// LoadRulesFile reads, validates and orders the rules file at path. The
// format follows the extension: .cue, .json, .yaml, .yml or .toml.
//
// YAML files keep the order tools are written in. Other formats decode
// toolchain as an unordered map, so they follow the optional order list and
// then tool names.
func LoadRulesFile(path string) (*RulesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRulesFile(path, data)
}

// ParseRulesFile is LoadRulesFile on already-read data.
func ParseRulesFile(path string, data []byte) (*RulesFile, error) {
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return nil, err
	}

	var (
		doc       *rulesDocument
		fileOrder []string
		err       error
	)
	opts := []cueutil.Option{cueutil.WithFilename(path)}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".cue", ".json":
		// JSON is a subset of CUE.
		doc, err = decode(cueutil.ParseAndDecode[rulesDocument](rulesSchema, data, "#Rules", opts...))
	case ".yaml", ".yml":
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		var generic map[string]any
		if err := node.Decode(&generic); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		fileOrder = yamlToolchainOrder(&node)
		doc, err = decode(cueutil.DecodeValue[rulesDocument](rulesSchema, generic, "#Rules", opts...))
	case ".toml":
		var generic map[string]any
		if err := toml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		doc, err = decode(cueutil.DecodeValue[rulesDocument](rulesSchema, generic, "#Rules", opts...))
	default:
		return nil, fmt.Errorf("%s: %w %q (use .cue, .json, .yaml, .yml or .toml)", path, ErrUnsupportedRulesFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	names, err := orderTools(doc, fileOrder)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	rf := &RulesFile{Path: path, Tools: make([]Tool, 0, len(names))}
	for _, name := range names {
		tool := doc.Toolchain[name]
		tool.Name = name
		tool.Match = expandMatchAlias(tool.Match)
		rf.Tools = append(rf.Tools, tool)
	}

	if _, err := rewrite.NewRuleSet(rf.Rules()); err != nil {
		var patErr *rewrite.InvalidPatternError
		if errors.As(err, &patErr) {
			return nil, fmt.Errorf("%s: toolchain.%s.match: %w", path, rf.Tools[patErr.Index].Name, err)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rf, nil
}

func decode(result *cueutil.ParseResult[rulesDocument], err error) (*rulesDocument, error) {
	if err != nil {
		return nil, err
	}
	return result.Value, nil
}

// orderTools returns tool names in evaluation order: the explicit order
// list, else the file order, with any remaining names sorted.
func orderTools(doc *rulesDocument, fileOrder []string) ([]string, error) {
	preferred := doc.Order
	if len(preferred) == 0 {
		preferred = fileOrder
	}

	names := make([]string, 0, len(doc.Toolchain))
	seen := make(map[string]bool, len(doc.Toolchain))
	for _, name := range preferred {
		if _, ok := doc.Toolchain[name]; !ok {
			return nil, fmt.Errorf("order: unknown tool %q", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("order: tool %q listed twice", name)
		}
		seen[name] = true
		names = append(names, name)
	}

	var rest []string
	for name := range doc.Toolchain {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(names, rest...), nil
}

// yamlToolchainOrder returns the keys of the top-level toolchain mapping in
// document order.
func yamlToolchainOrder(doc *yaml.Node) []string {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "toolchain" {
			continue
		}
		toolchain := root.Content[i+1]
		if toolchain.Kind != yaml.MappingNode {
			return nil
		}
		names := make([]string, 0, len(toolchain.Content)/2)
		for j := 0; j+1 < len(toolchain.Content); j += 2 {
			names = append(names, toolchain.Content[j].Value)
		}
		return names
	}
	return nil
}

func expandMatchAlias(match string) string {
	switch match {
	case AliasDefaultCC:
		return rewrite.DefaultCCPattern
	case AliasDefaultCXX:
		return rewrite.DefaultCXXPattern
	default:
		return match
	}
}

// Rules converts the tools to rewrite rules in evaluation order.
func (rf *RulesFile) Rules() []rewrite.Rule {
	rules := make([]rewrite.Rule, len(rf.Tools))
	for i, t := range rf.Tools {
		rules[i] = rewrite.Rule{
			Match:   t.Match,
			Replace: t.Replace,
			Add:     slices.Clone(t.Add),
			Remove:  slices.Clone(t.Remove),
		}
	}
	return rules
}

// GenerateRulesCUE renders tools as a CUE rules file. The order list keeps
// the evaluation order through CUE's unordered decoding.
func GenerateRulesCUE(tools []Tool) string {
	var sb strings.Builder

	sb.WriteString("// buildhook toolchain rules\n\n")
	sb.WriteString("toolchain: {\n")
	for _, t := range tools {
		fmt.Fprintf(&sb, "\t%q: {\n", t.Name)
		fmt.Fprintf(&sb, "\t\tmatch: %q\n", t.Match)
		if t.Replace != "" {
			fmt.Fprintf(&sb, "\t\treplace: %q\n", t.Replace)
		}
		if len(t.Add) > 0 {
			sb.WriteString("\t\t")
			writeCUEList(&sb, "add_arguments", t.Add)
		}
		if len(t.Remove) > 0 {
			sb.WriteString("\t\t")
			writeCUEList(&sb, "remove_arguments", t.Remove)
		}
		sb.WriteString("\t}\n")
	}
	sb.WriteString("}\n")

	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	writeCUEList(&sb, "order", names)
	return sb.String()
}
