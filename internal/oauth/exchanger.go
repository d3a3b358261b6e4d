package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/rankbridge/rankbridge/internal/config"
)

// robloxExchanger wraps golang.org/x/oauth2 against the Roblox OAuth2 endpoints.
type robloxExchanger struct {
	conf        *oauth2.Config
	userinfoURL string
}

// NewExchanger builds the production Exchanger from config.
func NewExchanger(cfg config.OAuthConfig) Exchanger {
	return &robloxExchanger{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"openid", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthorizeURL,
				TokenURL: cfg.TokenURL,
			},
		},
		userinfoURL: cfg.UserinfoURL,
	}
}

func (e *robloxExchanger) AuthCodeURL(state string) string {
	return e.conf.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "consent select_account"))
}

func (e *robloxExchanger) Exchange(ctx context.Context, code string) (Userinfo, error) {
	token, err := e.conf.Exchange(ctx, code)
	if err != nil {
		return Userinfo{}, fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.userinfoURL, nil)
	if err != nil {
		return Userinfo{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Userinfo{}, fmt.Errorf("%w: %v", ErrUserinfo, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Userinfo{}, fmt.Errorf("%w: status %d", ErrUserinfo, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Userinfo{}, err
	}
	var info Userinfo
	if err := json.Unmarshal(data, &info); err != nil {
		return Userinfo{}, fmt.Errorf("%w: %v", ErrUserinfo, err)
	}
	return info, nil
}
