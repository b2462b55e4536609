package component

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfkiwl/blockstream/errors"
)

func TestValidateFactoryConfig_AcceptsNormalConfig(t *testing.T) {
	assert.NoError(t, ValidateFactoryConfig(nil))
	assert.NoError(t, ValidateFactoryConfig([]byte(`{}`)))
	assert.NoError(t, ValidateFactoryConfig(
		[]byte(`{"dtype":"int32","file_path":"/data/in.bin","auto_rewind":true,"n":3.5}`)))
}

func TestValidateFactoryConfig_RejectsMalformedJSON(t *testing.T) {
	err := ValidateFactoryConfig([]byte(`{"unterminated`))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestValidateFactoryConfig_RejectsOversizedDocument(t *testing.T) {
	big := fmt.Sprintf(`{"x":"%s"}`, strings.Repeat("a", MaxJSONSize))
	err := ValidateFactoryConfig([]byte(big))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestValidateFactoryConfig_RejectsLongString(t *testing.T) {
	long := fmt.Sprintf(`{"x":"%s"}`, strings.Repeat("a", MaxStringLength+1))
	err := ValidateFactoryConfig([]byte(long))
	require.Error(t, err)
}

func TestValidateFactoryConfig_RejectsNullByte(t *testing.T) {
	err := ValidateFactoryConfig([]byte("{\"path\":\"/tmp/a\\u0000.bin\"}"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestValidateFactoryConfig_RejectsControlCharacters(t *testing.T) {
	err := ValidateFactoryConfig([]byte("{\"x\":\"a\\u0001b\"}"))
	require.Error(t, err)

	// Whitespace control characters are allowed.
	assert.NoError(t, ValidateFactoryConfig([]byte("{\"x\":\"a\\n\\tb\"}")))
}

func TestValidateFactoryConfig_RejectsDeepNesting(t *testing.T) {
	depth := 12
	doc := strings.Repeat(`{"a":`, depth) + `1` + strings.Repeat(`}`, depth)
	err := ValidateFactoryConfig([]byte(doc))
	require.Error(t, err)
}

func TestValidateFactoryConfig_RejectsHugeArray(t *testing.T) {
	elems := make([]string, 1001)
	for i := range elems {
		elems[i] = "1"
	}
	doc := `{"a":[` + strings.Join(elems, ",") + `]}`
	err := ValidateFactoryConfig([]byte(doc))
	require.Error(t, err)
}

type validatedConfig struct {
	Count int `json:"count"`
}

func (c *validatedConfig) Validate() error {
	if c.Count < 0 {
		return fmt.Errorf("count cannot be negative")
	}
	return nil
}

func TestSafeUnmarshal(t *testing.T) {
	var cfg validatedConfig
	require.NoError(t, SafeUnmarshal([]byte(`{"count":3}`), &cfg))
	assert.Equal(t, 3, cfg.Count)

	// Empty config keeps defaults.
	cfg = validatedConfig{Count: 7}
	require.NoError(t, SafeUnmarshal(nil, &cfg))
	assert.Equal(t, 7, cfg.Count)
}

func TestSafeUnmarshal_RunsStructValidation(t *testing.T) {
	var cfg validatedConfig
	err := SafeUnmarshal([]byte(`{"count":-1}`), &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count cannot be negative")
}

func TestSafeUnmarshal_RequiresPointerTarget(t *testing.T) {
	var cfg validatedConfig
	err := SafeUnmarshal([]byte(`{}`), cfg)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestSafeUnmarshal_TypeMismatch(t *testing.T) {
	var cfg validatedConfig
	err := SafeUnmarshal(json.RawMessage(`{"count":"three"}`), &cfg)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}
