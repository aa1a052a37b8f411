/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package codec converts documents to generated display text and back.
// Each widget is carried by one marker comment line that the parser treats
// as authoritative; the rendering fragment after it is ignored on import.
package codec

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

var markerLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
	{Name: "Key", Pattern: `[A-Za-z_][A-Za-z0-9_]*:`},
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Word", Pattern: `[^\s"]+`},
	{Name: "Quote", Pattern: `"`},
})

var (
	tokWhitespace = markerLexer.Symbols()["Whitespace"]
	tokKey        = markerLexer.Symbols()["Key"]
	tokString     = markerLexer.Symbols()["String"]
)

// Pair is one key:value token of a marker line.
type Pair struct {
	Key   string
	Value string
}

// Tokenize splits a marker payload into key/value pairs.
//
// A value is either a double-quoted string (Go escapes) or an unquoted run
// that ends at whitespace followed by the next key, or at the end of input.
// Text before the first key is ignored.
func Tokenize(payload string) ([]Pair, error) {
	lex, err := markerLexer.LexString("", payload)
	if err != nil {
		return nil, err
	}
	var toks []lexer.Token
	for {
		t, err := lex.Next()
		if err != nil {
			return nil, err
		}
		if t.EOF() {
			break
		}
		toks = append(toks, t)
	}

	var out []Pair
	for i := 0; i < len(toks); {
		if toks[i].Type != tokKey {
			i++
			continue
		}
		key := strings.TrimSuffix(toks[i].Value, ":")
		i++
		if i < len(toks) && toks[i].Type == tokString && (i+1 == len(toks) || toks[i+1].Type == tokWhitespace) {
			out = append(out, Pair{Key: key, Value: unquote(toks[i].Value)})
			i++
			continue
		}
		var b strings.Builder
		for i < len(toks) {
			if toks[i].Type == tokWhitespace && (i+1 == len(toks) || toks[i+1].Type == tokKey) {
				break
			}
			b.WriteString(toks[i].Value)
			i++
		}
		out = append(out, Pair{Key: key, Value: strings.TrimSpace(b.String())})
	}
	return out, nil
}

func unquote(s string) string {
	if v, err := strconv.Unquote(s); err == nil {
		return v
	}
	return s[1 : len(s)-1]
}

// quote renders a marker value, quoting it when it would not survive Tokenize bare.
func quote(v string) string {
	if v == "" || strings.ContainsAny(v, " \t\r\n\"\\") {
		return strconv.Quote(v)
	}
	return v
}
