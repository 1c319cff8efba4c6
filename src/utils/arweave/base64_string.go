package arweave

import (
	"encoding/base64"
	"encoding/json"
)

// Bytes transported as base64url without padding
type Base64String []byte

func (self *Base64String) UnmarshalJSON(data []byte) error {
	var s string
	err := json.Unmarshal(data, &s)
	if err != nil {
		return err
	}

	// Some nodes pad, some don't
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		b, err = base64.URLEncoding.DecodeString(s)
		if err != nil {
			return err
		}
	}

	*self = b
	return nil
}

func (self Base64String) MarshalJSON() (out []byte, err error) {
	return json.Marshal(base64.RawURLEncoding.EncodeToString(self))
}

func (self Base64String) String() string {
	return string(self)
}
