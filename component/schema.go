package component

import (
	"reflect"
	"strings"
)

// GenerateConfigSchema builds a ConfigSchema from a config struct type by
// reading `schema:` struct tags. Tag format is a comma-separated list of
// key:value pairs, e.g.:
//
//	FilePath string `json:"file_path" schema:"type:string,description:Path to the input file,category:basic"`
//
// Recognized keys: type, description, category, default, enum (pipe
// separated), required. Fields without a schema tag are skipped.
func GenerateConfigSchema(t reflect.Type) ConfigSchema {
	schema := ConfigSchema{
		Properties: make(map[string]PropertySchema),
	}

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return schema
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("schema")
		if tag == "" || tag == "-" {
			continue
		}

		name := jsonFieldName(field)
		if name == "" {
			continue
		}

		prop, required := parseSchemaTag(tag)
		schema.Properties[name] = prop
		if required {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema
}

// jsonFieldName resolves the wire name of a struct field.
func jsonFieldName(field reflect.StructField) string {
	jsonTag := field.Tag.Get("json")
	if jsonTag == "-" {
		return ""
	}
	name := strings.Split(jsonTag, ",")[0]
	if name == "" {
		name = field.Name
	}
	return name
}

// parseSchemaTag decodes one schema tag into a PropertySchema.
func parseSchemaTag(tag string) (PropertySchema, bool) {
	var prop PropertySchema
	var required bool

	for _, part := range strings.Split(tag, ",") {
		key, value, found := strings.Cut(part, ":")
		if !found {
			if strings.TrimSpace(part) == "required" {
				required = true
			}
			continue
		}

		switch strings.TrimSpace(key) {
		case "type":
			prop.Type = value
		case "description":
			prop.Description = value
		case "category":
			prop.Category = value
		case "default":
			prop.Default = value
		case "enum":
			prop.Enum = strings.Split(value, "|")
		}
	}

	return prop, required
}
