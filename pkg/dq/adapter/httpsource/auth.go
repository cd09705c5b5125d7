package httpsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"golang.org/x/oauth2"

	"github.com/tigerroll/surfin-dq/pkg/dq/component/diagnose"
	model "github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
)

// EnvLookup resolves an environment variable. It matches the signature of os.LookupEnv.
type EnvLookup func(key string) (string, bool)

// requireEnv returns the value of API_AUTH_<name>_<key>, failing when it is unset or blank.
func requireEnv(lookup EnvLookup, name string, key model.AuthKey) (string, error) {
	envKey := fmt.Sprintf("API_AUTH_%s_%s", name, key)
	v, ok := lookup(envKey)
	if !ok || strings.TrimSpace(v) == "" {
		return "", exception.NewConfigurationError(moduleName,
			fmt.Sprintf("Environment value can't be empty for %s: %s, please check `.env` or `.bashrc` file.", envKey, v), nil)
	}
	return v, nil
}

// Authenticator turns a base HTTP client into one that authenticates its requests.
type Authenticator interface {
	// AuthType reports the authorization scheme the strategy produces.
	AuthType() model.AuthType
	// Client returns an authenticated client built over base.
	Client(ctx context.Context, base *http.Client) (*http.Client, error)
}

// BasicAuth authenticates with a username and password from the environment.
type BasicAuth struct {
	Key    model.AuthKey
	Lookup EnvLookup
}

func (a *BasicAuth) AuthType() model.AuthType { return model.AuthTypeBasic }

func (a *BasicAuth) Client(ctx context.Context, base *http.Client) (*http.Client, error) {
	user, err := requireEnv(a.Lookup, "USERNAME", a.Key)
	if err != nil {
		return nil, err
	}
	pass, err := requireEnv(a.Lookup, "PASSWORD", a.Key)
	if err != nil {
		return nil, err
	}
	c := *base
	c.Transport = &basicTransport{user: user, pass: pass, next: transportOf(base)}
	return &c, nil
}

type basicTransport struct {
	user, pass string
	next       http.RoundTripper
}

func (t *basicTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.SetBasicAuth(t.user, t.pass)
	return t.next.RoundTrip(r)
}

func transportOf(c *http.Client) http.RoundTripper {
	if c.Transport != nil {
		return c.Transport
	}
	return http.DefaultTransport
}

// tokenRequest builds the request that exchanges environment secrets for an access token.
type tokenRequest func(ctx context.Context, tokenURL string) (*http.Request, error)

// BearerAuth obtains an access token from API_AUTH_URL_<key> and sends it as a bearer token.
// The token is the trimmed body of a text/plain response, or the value at API_AUTH_RESPONSE_PATH_<key>
// of a JSON response.
type BearerAuth struct {
	Key     model.AuthKey
	Lookup  EnvLookup
	request tokenRequest
}

// NewClientGrantAuth posts username, password, client id, client secret and grant type as a form.
func NewClientGrantAuth(key model.AuthKey, lookup EnvLookup) *BearerAuth {
	a := &BearerAuth{Key: key, Lookup: lookup}
	a.request = func(ctx context.Context, tokenURL string) (*http.Request, error) {
		form := url.Values{}
		for _, f := range [][2]string{
			{"username", "USERNAME"},
			{"password", "PASSWORD"},
			{"client_id", "CLIENT_ID"},
			{"grant_type", "GRANT_TYPE"},
			{"client_secret", "CLIENT_SECERT"},
		} {
			v, err := requireEnv(lookup, f[1], key)
			if err != nil {
				return nil, err
			}
			form.Set(f[0], v)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}
	return a
}

// NewTokenExchangeAuth posts an email id and a request token as JSON.
func NewTokenExchangeAuth(key model.AuthKey, lookup EnvLookup) *BearerAuth {
	a := &BearerAuth{Key: key, Lookup: lookup}
	a.request = func(ctx context.Context, tokenURL string) (*http.Request, error) {
		email, err := requireEnv(lookup, "EMAIL_ID", key)
		if err != nil {
			return nil, err
		}
		token, err := requireEnv(lookup, "REQUEST_TOKEN", key)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(map[string]string{"emailId": email, "requestToken": token})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(string(body)))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}
	return a
}

func (a *BearerAuth) AuthType() model.AuthType { return model.AuthTypeBearer }

func (a *BearerAuth) Client(ctx context.Context, base *http.Client) (*http.Client, error) {
	token, err := a.fetchToken(ctx, base)
	if err != nil {
		return nil, err
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	c := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	c.Timeout = base.Timeout
	return c, nil
}

func (a *BearerAuth) fetchToken(ctx context.Context, base *http.Client) (string, error) {
	tokenURL, err := requireEnv(a.Lookup, "URL", a.Key)
	if err != nil {
		return "", err
	}
	req, err := a.request(ctx, tokenURL)
	if err != nil {
		return "", err
	}
	resp, err := base.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, tokenURL); err != nil {
		return "", err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch mediaType {
	case "text/plain":
		return strings.TrimSpace(string(body)), nil
	case "application/json":
		path, err := requireEnv(a.Lookup, "RESPONSE_PATH", a.Key)
		if err != nil {
			return "", err
		}
		var doc map[string]interface{}
		if err := json.Unmarshal(body, &doc); err != nil {
			return "", exception.NewDQErrorf(moduleName, exception.KindDataFetch, "Token response of '%s' is not a JSON object", tokenURL, err)
		}
		v, err := diagnose.DrillDown(doc, strings.Split(path, "."))
		if err != nil {
			return "", err
		}
		token, ok := v.(string)
		if !ok {
			return "", exception.NewDQErrorf(moduleName, exception.KindDataFetch, "Token at '%s' is not a string: %T", path, v)
		}
		return token, nil
	default:
		return "", exception.NewDQErrorf(moduleName, exception.KindDataFetch,
			"Unsupported token response content type '%s' from '%s'", resp.Header.Get("Content-Type"), tokenURL)
	}
}

// DefaultAuthenticators returns the strategy for every supported auth key, reading secrets through lookup.
// A nil lookup reads the process environment.
func DefaultAuthenticators(lookup EnvLookup) map[model.AuthKey]Authenticator {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return map[model.AuthKey]Authenticator{
		model.AuthKeySAPSF: &BasicAuth{Key: model.AuthKeySAPSF, Lookup: lookup},
		model.AuthKeySFDC:  NewClientGrantAuth(model.AuthKeySFDC, lookup),
		model.AuthKeyDEXTC: NewTokenExchangeAuth(model.AuthKeyDEXTC, lookup),
	}
}

func supportedKeys(m map[model.AuthKey]Authenticator) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
