package wire

import (
	"errors"
	"testing"
)

func TestEnvelope_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
		want string
	}{
		{
			name: "null correlation id",
			env:  NewEnvelope(OpCancelOrder, "", map[string]string{"id": "abc"}),
			want: `[0,"oc",null,{"id":"abc"}]`,
		},
		{
			name: "with correlation id",
			env:  NewEnvelope(OpVerifyTx, "u-1", map[string]any{"meta": []int{1, 2}}),
			want: `[0,"ct","u-1",{"meta":[1,2]}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.env)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEnvelope_UnmarshalJSON(t *testing.T) {
	var env Envelope
	if err := Unmarshal([]byte(`[0,"on",null,{"price":"1"}]`), &env); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if env.Version != ProtocolVersion {
		t.Errorf("Version = %d, want %d", env.Version, ProtocolVersion)
	}
	if env.Opcode != OpNewOrder {
		t.Errorf("Opcode = %q, want %q", env.Opcode, OpNewOrder)
	}
	if env.ID != "" {
		t.Errorf("ID = %q, want empty", env.ID)
	}
	body, ok := env.Body.(RawMessage)
	if !ok {
		t.Fatalf("Body type = %T, want RawMessage", env.Body)
	}
	if string(body) != `{"price":"1"}` {
		t.Errorf("Body = %s", body)
	}
}

func TestEnvelope_UnmarshalJSON_Malformed(t *testing.T) {
	inputs := []string{
		`{"event":"auth"}`,
		`[0,"on",null]`,
		`["x","on",null,{}]`,
		`[0,"ct",5,{}]`,
	}

	for _, in := range inputs {
		var env Envelope
		err := env.UnmarshalJSON([]byte(in))
		if !errors.Is(err, ErrMalformedEnvelope) {
			t.Errorf("Unmarshal(%s) error = %v, want ErrMalformedEnvelope", in, err)
		}
	}
}
