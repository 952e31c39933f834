package googlesvc

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/theepangnani/emai-dev-03-sub000/core/communication"
	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

const maxGmailMessages = 50

type GmailFetcher struct {
	oauth *OAuth
	opts  []option.ClientOption
}

var _ communication.Fetcher = (*GmailFetcher)(nil)

// NewGmailFetcher builds a fetcher. opts are appended to the per-user client options.
func NewGmailFetcher(oauth *OAuth, opts ...option.ClientOption) *GmailFetcher {
	return &GmailFetcher{oauth: oauth, opts: opts}
}

func (f *GmailFetcher) Source() communication.Source { return communication.SourceGmail }

func (f *GmailFetcher) FetchSince(ctx context.Context, usr user.User, since time.Time) ([]communication.Item, string, error) {
	ts, tok, err := f.oauth.tokenSource(ctx, usr.GoogleToken)
	if err != nil {
		return nil, "", err
	}
	svc, err := gmail.NewService(ctx, append([]option.ClientOption{option.WithTokenSource(ts)}, f.opts...)...)
	if err != nil {
		return nil, "", errors.Wrap(err, "creating gmail client")
	}

	list, err := svc.Users.Messages.List("me").
		Q(fmt.Sprintf("in:inbox after:%d", since.Unix())).
		MaxResults(maxGmailMessages).
		Context(ctx).
		Do()
	if err != nil {
		return nil, "", errors.Wrap(err, "listing gmail messages")
	}

	items := make([]communication.Item, 0, len(list.Messages))
	for _, ref := range list.Messages {
		msg, err := svc.Users.Messages.Get("me", ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, "", errors.Wrapf(err, "getting gmail message %s", ref.Id)
		}
		items = append(items, gmailItem(msg))
	}

	token, err := refreshed(ts, tok)
	return items, token, err
}

func gmailItem(msg *gmail.Message) communication.Item {
	item := communication.Item{
		SourceID:   msg.Id,
		ReceivedAt: time.UnixMilli(msg.InternalDate).UTC(),
	}
	if msg.Payload == nil {
		item.Body = msg.Snippet
		return item
	}

	item.Subject = header(msg.Payload, "Subject")
	if from, err := mail.ParseAddress(header(msg.Payload, "From")); err == nil {
		item.SenderName, item.SenderEmail = from.Name, strings.ToLower(from.Address)
	} else {
		item.SenderEmail = strings.ToLower(header(msg.Payload, "From"))
	}
	item.Body = plainText(msg.Payload)
	if item.Body == "" {
		item.Body = msg.Snippet
	}
	return item
}

func header(part *gmail.MessagePart, name string) string {
	for _, h := range part.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// plainText returns the first text/plain part found depth first.
func plainText(part *gmail.MessagePart) string {
	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			data, err = base64.RawURLEncoding.DecodeString(part.Body.Data)
		}
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	for _, p := range part.Parts {
		if text := plainText(p); text != "" {
			return text
		}
	}
	return ""
}
