package google

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/KyungBin7/waitrush-sub000/social"
)

type tokenInfo struct {
	Sub           string   `json:"sub"`
	Aud           string   `json:"aud"`
	Azp           string   `json:"azp"`
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
	Picture       string   `json:"picture"`
}

// audience is the client the token was issued to. Access token responses
// may carry only azp.
func (i *tokenInfo) audience() string {
	if i.Aud != "" {
		return i.Aud
	}
	return i.Azp
}

// flexBool accepts both true and "true". The token info endpoint returns
// strings.
type flexBool struct {
	set   bool
	value bool
}

func (b *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		b.set, b.value = true, v
		return nil
	}

	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	b.set, b.value = true, v
	return nil
}

func mapProfile(info *tokenInfo) *social.GoogleProfile {
	if info == nil {
		return nil
	}

	return &social.GoogleProfile{
		Email:      info.Email,
		ProviderID: info.Sub,
		Name:       info.Name,
		Picture:    info.Picture,
	}
}
