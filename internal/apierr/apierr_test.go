package apierr

import (
	"errors"
	"fmt"
	"testing"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		fallback string
		want     string
	}{
		{"nil", nil, "Failed to load any chats.", ""},
		{"network", &NetworkError{Op: "list chats", Err: errors.New("connection refused")}, "Failed to load any chats.", NetworkMessage},
		{"wrapped network", fmt.Errorf("load: %w", &NetworkError{Op: "x", Err: errors.New("eof")}), "x", NetworkMessage},
		{"server", &ServerError{Op: "list chats", Status: 500, Detail: "pq: relation does not exist"}, "Failed to load any chats.", "Failed to load any chats."},
		{"malformed", &ServerError{Op: "list chats", Status: StatusMalformed}, "Failed to load any chats.", "Failed to load any chats."},
		{"generic", errors.New("boom"), "", GenericMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Message(tt.err, tt.fallback); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServerErrorMalformed(t *testing.T) {
	err := &ServerError{Op: "get chat", Status: StatusMalformed, Detail: "missing id"}
	if !err.Malformed() {
		t.Error("Malformed() = false, want true")
	}
	if IsNetwork(err) {
		t.Error("IsNetwork() = true for server error")
	}
}

func TestIsMalformedWrapped(t *testing.T) {
	wrapped := fmt.Errorf("load: %w", &ServerError{Op: "list messages", Status: StatusMalformed})
	if !IsMalformed(wrapped) {
		t.Error("IsMalformed() = false for wrapped malformed error")
	}
	if IsMalformed(&ServerError{Op: "list messages", Status: 500}) {
		t.Error("IsMalformed() = true for 500")
	}
	if IsMalformed(&NetworkError{Op: "list messages", Err: errors.New("refused")}) {
		t.Error("IsMalformed() = true for network error")
	}
}
