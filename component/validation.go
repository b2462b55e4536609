package component

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/mfkiwl/blockstream/errors"
)

// Limits for raw configuration screening
const (
	// MaxJSONSize bounds a single block's raw configuration document
	MaxJSONSize = 64 * 1024
	// MaxStringLength bounds any single string value or key
	MaxStringLength = 4096
)

// ConfigValidator provides secure validation for block configurations
type ConfigValidator struct {
	maxDepth     int
	maxArraySize int
	maxStringLen int
	maxJSONSize  int
}

// NewConfigValidator creates a validator with secure defaults
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		maxDepth:     10,   // Prevent deeply nested JSON attacks
		maxArraySize: 1000, // Prevent memory exhaustion from huge arrays
		maxStringLen: MaxStringLength,
		maxJSONSize:  MaxJSONSize,
	}
}

// ValidateConfig performs comprehensive validation on raw JSON config.
// This prevents injection attacks, resource exhaustion, and malformed input.
func (v *ConfigValidator) ValidateConfig(rawConfig json.RawMessage) error {
	if len(rawConfig) > v.maxJSONSize {
		return errors.WrapInvalid(
			fmt.Errorf("config size %d exceeds maximum %d", len(rawConfig), v.maxJSONSize),
			"ConfigValidator", "ValidateConfig", "size check")
	}

	// Empty config is valid (blocks can have defaults)
	if len(rawConfig) == 0 {
		return nil
	}

	var config any
	decoder := json.NewDecoder(strings.NewReader(string(rawConfig)))
	decoder.UseNumber() // Prevent float overflow attacks

	if err := decoder.Decode(&config); err != nil {
		return errors.WrapInvalid(err, "ConfigValidator", "ValidateConfig", "JSON parsing")
	}

	if err := v.validateValue(config, 0); err != nil {
		return errors.Wrap(err, "ConfigValidator", "ValidateConfig", "deep validation")
	}

	return nil
}

// validateValue recursively validates a JSON value
func (v *ConfigValidator) validateValue(value any, depth int) error {
	if depth > v.maxDepth {
		return errors.WrapInvalid(
			fmt.Errorf("JSON depth %d exceeds maximum %d", depth, v.maxDepth),
			"ConfigValidator", "validateValue", "depth check")
	}

	switch val := value.(type) {
	case string:
		if len(val) > v.maxStringLen {
			return errors.WrapInvalid(
				fmt.Errorf("string length %d exceeds maximum %d", len(val), v.maxStringLen),
				"ConfigValidator", "validateValue", "string length check")
		}
		if err := v.validateStringContent(val); err != nil {
			return err
		}

	case json.Number:
		if _, err := val.Int64(); err != nil {
			if _, err := val.Float64(); err != nil {
				return errors.WrapInvalid(err, "ConfigValidator", "validateValue", "number validation")
			}
		}

	case []any:
		if len(val) > v.maxArraySize {
			return errors.WrapInvalid(
				fmt.Errorf("array size %d exceeds maximum %d", len(val), v.maxArraySize),
				"ConfigValidator", "validateValue", "array size check")
		}
		for i, elem := range val {
			if err := v.validateValue(elem, depth+1); err != nil {
				return errors.Wrap(err, "ConfigValidator", "validateValue",
					fmt.Sprintf("array element %d", i))
			}
		}

	case map[string]any:
		for key, elem := range val {
			if len(key) > v.maxStringLen {
				return errors.WrapInvalid(
					fmt.Errorf("key '%s' length exceeds maximum", key),
					"ConfigValidator", "validateValue", "key length check")
			}
			if err := v.validateStringContent(key); err != nil {
				return errors.Wrap(err, "ConfigValidator", "validateValue", "key validation")
			}
			if err := v.validateValue(elem, depth+1); err != nil {
				return errors.Wrap(err, "ConfigValidator", "validateValue",
					fmt.Sprintf("object field '%s'", key))
			}
		}

	case bool, nil:
		// These types are always safe

	default:
		return errors.WrapInvalid(
			fmt.Errorf("unexpected type %T in config", value),
			"ConfigValidator", "validateValue", "type check")
	}

	return nil
}

// validateStringContent checks for dangerous patterns in strings
func (v *ConfigValidator) validateStringContent(s string) error {
	// Null bytes can truncate paths at the syscall boundary
	if strings.Contains(s, "\x00") {
		return errors.WrapInvalid(
			fmt.Errorf("string contains null byte"),
			"ConfigValidator", "validateStringContent", "null byte check")
	}

	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			return errors.WrapInvalid(
				fmt.Errorf("string contains control character: 0x%02x", r),
				"ConfigValidator", "validateStringContent", "control character check")
		}
	}

	return nil
}

// ValidateFactoryConfig performs validation before passing to a factory.
// This is the main security gate for all block configurations.
func ValidateFactoryConfig(rawConfig json.RawMessage) error {
	validator := NewConfigValidator()
	return validator.ValidateConfig(rawConfig)
}

// SafeUnmarshal performs validated unmarshaling into a target struct.
// It validates the JSON first, then unmarshals with additional type checking.
func SafeUnmarshal(rawConfig json.RawMessage, target any) error {
	if err := ValidateFactoryConfig(rawConfig); err != nil {
		return errors.Wrap(err, "ConfigValidator", "SafeUnmarshal", "config validation")
	}

	// Empty config is valid - target keeps its defaults
	if len(rawConfig) == 0 {
		return nil
	}

	targetType := reflect.TypeOf(target)
	if targetType.Kind() != reflect.Ptr {
		return errors.WrapInvalid(
			fmt.Errorf("target must be a pointer, got %T", target),
			"ConfigValidator", "SafeUnmarshal", "target type check")
	}

	if err := json.Unmarshal(rawConfig, target); err != nil {
		return errors.WrapInvalid(err, "ConfigValidator", "SafeUnmarshal", "JSON unmarshaling")
	}

	if validatable, ok := target.(Validatable); ok {
		if err := validatable.Validate(); err != nil {
			return errors.Wrap(err, "ConfigValidator", "SafeUnmarshal", "struct validation")
		}
	}

	return nil
}

// Validatable interface for configs that can self-validate
type Validatable interface {
	Validate() error
}
