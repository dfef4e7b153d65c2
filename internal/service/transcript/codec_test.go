package transcript

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esperancapontalsul/hope/backend/internal/model/chat"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := map[string][]chat.Message{
		"empty": {},
		"single turn": {
			chat.UserMessage("Qual o horário do culto?"),
		},
		"full exchange": {
			chat.UserMessage("oi"),
			chat.ModelMessage("Olá! Em que posso ajudar?"),
			chat.UserMessage("Onde fica a igreja?"),
			chat.ModelMessage(`Fica aqui: <a href="https://maps.example" class="chip map" target="_blank">Mapa</a>`),
		},
		"multi part and empty text": {
			{Role: chat.RoleModel, Parts: []chat.Part{{Text: "primeira"}, {Text: ""}, {Text: "terceira"}}},
			{Role: chat.RoleSystem, Parts: []chat.Part{{Text: "nota"}}},
		},
	}

	for name, messages := range cases {
		t.Run(name, func(t *testing.T) {
			decoded, err := Decode(Encode(messages))
			require.NoError(t, err)
			assert.Equal(t, messages, decoded)

			raw, err := MarshalJSON(messages)
			require.NoError(t, err)
			fromJSON, err := DecodeJSON(raw)
			require.NoError(t, err)
			assert.Equal(t, messages, fromJSON)
		})
	}
}

func TestEncodeCanonicalShape(t *testing.T) {
	stored := Encode([]chat.Message{chat.ModelMessage("amém")})

	raw, err := json.Marshal(stored)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"role":"model","parts":[{"text":"amém"}]}]`, string(raw))
}

func TestDecodeAcceptsLegacyShapes(t *testing.T) {
	raw := []byte(`[
		{"role":"user","parts":["bare string part"]},
		{"role":"assistant","content":"old content field"},
		{"role":"model","parts":[{"text":"canonical"}]}
	]`)

	messages, err := DecodeJSON(raw)
	require.NoError(t, err)
	require.Len(t, messages, 3)

	assert.Equal(t, chat.UserMessage("bare string part"), messages[0])
	assert.Equal(t, chat.ModelMessage("old content field"), messages[1])
	assert.Equal(t, chat.ModelMessage("canonical"), messages[2])
}

func TestDecodePartialHistoryIsValid(t *testing.T) {
	messages, err := DecodeJSON([]byte(`[{"role":"user","parts":[{"text":"oi"}]}]`))
	require.NoError(t, err)
	assert.Equal(t, []chat.Message{chat.UserMessage("oi")}, messages)
}

func TestDecodeRejectsMalformedItems(t *testing.T) {
	cases := map[string]string{
		"missing parts":       `[{"role":"user"}]`,
		"missing role":        `[{"parts":[{"text":"oi"}]}]`,
		"empty parts":         `[{"role":"user","parts":[]}]`,
		"unknown role":        `[{"role":"robot","parts":[{"text":"oi"}]}]`,
		"non mapping entry":   `["oi"]`,
		"part without text":   `[{"role":"user","parts":[{"image":"x"}]}]`,
		"numeric part":        `[{"role":"user","parts":[42]}]`,
		"parts not a list":    `[{"role":"user","parts":{"text":"oi"}}]`,
		"bad item after good": `[{"role":"user","parts":[{"text":"oi"}]},{"role":"model"}]`,
		"invalid json":        `[{"role":`,
		"not a list":          `{"role":"user"}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			messages, err := DecodeJSON([]byte(raw))
			require.ErrorIs(t, err, ErrCorrupted)
			assert.Nil(t, messages)
		})
	}
}

func TestDecodeEmptyInput(t *testing.T) {
	messages, err := Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, messages)

	messages, err = DecodeJSON(nil)
	require.NoError(t, err)
	assert.Empty(t, messages)
}
