package github

import (
	"strconv"

	"github.com/KyungBin7/waitrush-sub000/social"
)

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func mapProfile(user *githubUser, email string) *social.GitHubProfile {
	if user == nil {
		return nil
	}

	return &social.GitHubProfile{
		Email:      email,
		ProviderID: strconv.FormatInt(user.ID, 10),
		Username:   user.Login,
		Name:       user.Name,
		AvatarURL:  user.AvatarURL,
	}
}
