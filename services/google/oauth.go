// Package googlesvc fetches teacher emails from Gmail and announcements from Google Classroom.
package googlesvc

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/classroom/v1"
	"google.golang.org/api/gmail/v1"

	"github.com/theepangnani/emai-dev-03-sub000/core"
)

var scopes = []string{
	gmail.GmailReadonlyScope,
	classroom.ClassroomCoursesReadonlyScope,
	classroom.ClassroomAnnouncementsReadonlyScope,
	classroom.ClassroomRostersReadonlyScope,
	classroom.ClassroomProfileEmailsScope,
}

// OAuth wraps the oauth2 flow used to connect a google account.
type OAuth struct {
	conf *oauth2.Config
}

func NewOAuth(conf *core.Config) *OAuth {
	return &OAuth{conf: &oauth2.Config{
		ClientID:     conf.Google.ClientID,
		ClientSecret: conf.Google.ClientSecret,
		RedirectURL:  conf.Google.RedirectURL,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}}
}

func (o *OAuth) Enabled() bool {
	return o.conf.ClientID != "" && o.conf.ClientSecret != ""
}

// AuthCodeURL returns the consent page URL. Offline access yields a refresh token.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token, JSON encoded for storage.
func (o *OAuth) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := o.conf.Exchange(ctx, code)
	if err != nil {
		return "", errors.Wrap(err, "exchanging code")
	}
	return encodeToken(tok)
}

// tokenSource returns a refreshing source for the stored token.
func (o *OAuth) tokenSource(ctx context.Context, stored string) (oauth2.TokenSource, *oauth2.Token, error) {
	tok, err := decodeToken(stored)
	if err != nil {
		return nil, nil, err
	}
	return o.conf.TokenSource(ctx, tok), tok, nil
}

func decodeToken(stored string) (*oauth2.Token, error) {
	tok := new(oauth2.Token)
	if err := json.Unmarshal([]byte(stored), tok); err != nil {
		return nil, errors.Wrap(err, "decoding oauth token")
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("empty oauth token")
	}
	return tok, nil
}

func encodeToken(tok *oauth2.Token) (string, error) {
	b, err := json.Marshal(tok)
	if err != nil {
		return "", errors.Wrap(err, "encoding oauth token")
	}
	return string(b), nil
}

// refreshed returns the encoded current token of ts when it differs from the stored one.
func refreshed(ts oauth2.TokenSource, old *oauth2.Token) (string, error) {
	tok, err := ts.Token()
	if err != nil {
		return "", errors.Wrap(err, "getting token")
	}
	if tok.AccessToken == old.AccessToken {
		return "", nil
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = old.RefreshToken
	}
	return encodeToken(tok)
}
