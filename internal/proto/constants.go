package proto

// Response vocabulary of the text protocol. All responses are single
// CRLF-terminated lines except VALUE, which is followed by the raw data bytes
// and their own CRLF.
const (
	RespStored    = "STORED"
	RespNotStored = "NOT_STORED"
	RespDeleted   = "DELETED"
	RespTouched   = "TOUCHED"
	RespExists    = "EXISTS"
	RespNotFound  = "NOT_FOUND"
	RespEnd       = "END"
	RespError     = "ERROR"

	RespClientErrorPrefix = "CLIENT_ERROR"
	RespServerErrorPrefix = "SERVER_ERROR"
)

// MaxKeyLength is the longest key the server accepts, in bytes.
const MaxKeyLength = 250

// IsValidKey reports whether key is usable on the wire: non-empty, at most
// MaxKeyLength bytes, no whitespace or control bytes.
func IsValidKey(key string) bool {
	if len(key) == 0 || len(key) > MaxKeyLength {
		return false
	}

	for _, b := range []byte(key) {
		if b <= 32 || b == 127 {
			return false
		}
	}

	return true
}
