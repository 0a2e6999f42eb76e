// Copyright (C) 2019-2026 Algorand, Inc.
// This file is part of go-microledger
//
// go-microledger is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-microledger is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-microledger.  If not, see <https://www.gnu.org/licenses/>.

package codecs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
)

// LoadObjectFromFile implements the common pattern for loading an instance
// of an object from a json file.
func LoadObjectFromFile(filename string, object interface{}) (err error) {
	f, err := os.Open(filename)
	if err != nil {
		return
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	err = dec.Decode(object)
	return
}

// SaveNonDefaultValuesToFile saves a struct to a file as a json object holding only
// the fields whose value differs from the one in defaultObject. Fields named in
// alwaysInclude are written regardless. Field order follows the struct declaration.
func SaveNonDefaultValuesToFile(filename string, object, defaultObject interface{}, alwaysInclude []string, prettyFormat bool) error {
	fields, err := nonDefaultFields(object, defaultObject, alwaysInclude)
	if err != nil {
		return err
	}

	indent, sep := "", ""
	if prettyFormat {
		indent, sep = "\t", "\n"
	}

	var buf bytes.Buffer
	buf.WriteString("{" + sep)
	for i, f := range fields {
		name, err := json.Marshal(f.name)
		if err != nil {
			return err
		}
		var value []byte
		if prettyFormat {
			value, err = json.MarshalIndent(f.value, indent, indent)
		} else {
			value, err = json.Marshal(f.value)
		}
		if err != nil {
			return fmt.Errorf("field %s: %w", f.name, err)
		}
		buf.WriteString(indent)
		buf.Write(name)
		buf.WriteString(":")
		if prettyFormat {
			buf.WriteString(" ")
		}
		buf.Write(value)
		if i < len(fields)-1 {
			buf.WriteString(",")
		}
		buf.WriteString(sep)
	}
	buf.WriteString("}")
	if prettyFormat {
		buf.WriteString("\n")
	}
	return writeFileAtomic(filename, buf.Bytes())
}

type namedValue struct {
	name  string
	value interface{}
}

func nonDefaultFields(object, defaultObject interface{}, alwaysInclude []string) ([]namedValue, error) {
	val := reflect.Indirect(reflect.ValueOf(object))
	def := reflect.Indirect(reflect.ValueOf(defaultObject))
	if val.Kind() != reflect.Struct || def.Type() != val.Type() {
		return nil, fmt.Errorf("cannot compare %T against defaults of type %T", object, defaultObject)
	}

	objectValues := createValueMap(val)
	defaultValues := createValueMap(def)

	var out []namedValue
	for i := 0; i < val.NumField(); i++ {
		field := val.Type().Field(i)
		if !field.IsExported() {
			continue
		}
		if !inStringArray(field.Name, alwaysInclude) && isDefaultValue(field.Name, objectValues, defaultValues) {
			continue
		}
		out = append(out, namedValue{name: field.Name, value: objectValues[field.Name]})
	}
	return out, nil
}

// writeFileAtomic replaces filename so that readers never observe a partial file.
func writeFileAtomic(filename string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".tmp*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer os.Remove(name)

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Rename(name, filename)
}

func inStringArray(item string, set []string) bool {
	for _, s := range set {
		if item == s {
			return true
		}
	}
	return false
}

func createValueMap(val reflect.Value) map[string]interface{} {
	valueMap := make(map[string]interface{})
	for i := 0; i < val.NumField(); i++ {
		if !val.Type().Field(i).IsExported() {
			continue
		}
		valueMap[val.Type().Field(i).Name] = val.Field(i).Interface()
	}
	return valueMap
}

func isDefaultValue(name string, values, defaults map[string]interface{}) bool {
	val, hasVal := values[name]
	def, hasDef := defaults[name]
	if hasVal != hasDef {
		return false
	}

	return reflect.DeepEqual(val, def)
}
