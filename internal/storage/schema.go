/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed design.schema.json
var designSchema []byte

// SchemaError lists every violation found by ValidatePayload.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "payload does not conform to schema: " + strings.Join(e.Problems, "; ")
}

// Schema returns the embedded JSON schema for design.json.
func Schema() []byte { return designSchema }

// ValidatePayload checks raw design.json bytes against the embedded schema.
func ValidatePayload(data []byte) error {
	if len(data) == 0 {
		return errors.New("empty payload")
	}
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(designSchema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validate: %w", err)
	}
	if res.Valid() {
		return nil
	}
	se := &SchemaError{}
	for _, e := range res.Errors() {
		se.Problems = append(se.Problems, e.String())
	}
	return se
}
