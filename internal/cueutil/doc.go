// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates configuration against embedded CUE schemas and
// decodes the result into Go structs.
//
// Every caller follows the same three steps: compile the schema, unify the
// user value with a root definition, then validate and decode. Source files
// written in CUE go through ParseAndDecode; data already decoded from YAML,
// TOML or JSON goes through DecodeValue so that every rules format is checked
// by the same schema.
//
//	//go:embed rules_schema.cue
//	var rulesSchema []byte
//
//	result, err := cueutil.ParseAndDecode[rulesDocument](
//	    rulesSchema, data, "#Rules",
//	    cueutil.WithFilename("rules.cue"),
//	)
package cueutil
