package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"bitbucket.org/pushfeedback/feedback_backend/config"
	"github.com/sirupsen/logrus"
)

const (
	defaultBaseURL = "https://seller.wildberries.ru"
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Safari/605.1.15"
	// Fingerprint the login endpoint expects alongside the notify code.
	deviceFingerprint = "Macintosh,Google Chrome 110.0"

	cardsPageSize       = 100
	defaultMaxCardPages = 50
)

// Client is a session-scoped portal HTTP client. SupplierId and WBToken may
// both be empty for pre-auth calls. Single attempt per call; retries are a
// caller concern.
type Client struct {
	baseURL    string
	supplierId string
	wbToken    string
	http       *http.Client
}

func NewClient(supplierId string, wbToken string) *Client {
	baseURL := strings.TrimSpace(os.Getenv("WB_PORTAL_BASE_URL"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := time.Duration(config.IntFromEnv("WB_PORTAL_TIMEOUT_SECONDS", 30)) * time.Second

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		supplierId: supplierId,
		wbToken:    wbToken,
		http:       &http.Client{Timeout: timeout},
	}
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("Accept", "*/*")
	h.Set("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")
	h.Set("Content-Type", "application/json")
	h.Set("Cookie", fmt.Sprintf("x-supplier-id=%s;WBToken=%s;", c.supplierId, c.wbToken))
	h.Set("User-Agent", userAgent)
	return h
}

func (c *Client) request(ctx context.Context, method string, path string, params url.Values, payload any) (int, []byte, http.Header, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, nil, newError(ErrorKindValidation, "", "encode request: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, nil, newError(ErrorKindValidation, "", "build request: %v", err)
	}
	req.Header = c.headers()

	resp, err := c.http.Do(req)
	if err != nil {
		config.LogError(config.GetLogger(), "portal", "request", method+" "+path, nil, err)
		return 0, nil, nil, newError(ErrorKindTransport, "", "portal unreachable: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody, resp.Header, nil
}

// RequestLoginCode asks the portal to send a verification code to the phone
// and returns the pending token for the verification step. Transport
// failures and portal rejections surface identically as an invalid-phone
// rejection; the distinction is logged.
func (c *Client) RequestLoginCode(ctx context.Context, phone string) (string, error) {
	payload := loginByPhoneRequest{
		Phone:                        strings.ReplaceAll(phone, "+", ""),
		IsTermsAndConditionsAccepted: true,
	}

	status, body, _, err := c.request(ctx, http.MethodPost, "/passport/api/v2/auth/login_by_phone", nil, payload)
	if err != nil {
		return "", newError(ErrorKindRejected, "", "invalid phone number")
	}
	if status != http.StatusOK {
		config.GetLogger().WithFields(logrus.Fields{
			"module": "portal",
			"status": status,
			"body":   string(body),
		}).Error("login code request rejected")
		return "", newError(ErrorKindRejected, "", "invalid phone number")
	}

	var parsed loginByPhoneResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Token == "" {
		return "", newError(ErrorKindRejected, "", "invalid phone number")
	}
	config.GetLogger().WithFields(logrus.Fields{"module": "portal"}).Info("verification code sent")
	return parsed.Token, nil
}

// VerifyLoginCode exchanges the pending token and the received code for the
// session token, extracted from the WBToken response cookie.
func (c *Client) VerifyLoginCode(ctx context.Context, pendingToken string, code string) (string, error) {
	payload := loginRequest{
		Options: loginOptions{NotifyCode: code},
		Token:   pendingToken,
		Device:  deviceFingerprint,
	}

	endpoint := c.baseURL + "/passport/api/v2/auth/login"
	data, err := json.Marshal(payload)
	if err != nil {
		return "", newError(ErrorKindValidation, "", "encode request: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", newError(ErrorKindValidation, "", "build request: %v", err)
	}
	req.Header = c.headers()

	resp, err := c.http.Do(req)
	if err != nil {
		config.LogError(config.GetLogger(), "portal", "VerifyLoginCode", "request", nil, err)
		return "", newError(ErrorKindTransport, "", "portal unreachable: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusOK {
		for _, cookie := range resp.Cookies() {
			if cookie.Name == "WBToken" && cookie.Value != "" {
				return cookie.Value, nil
			}
		}
		return "", newError(ErrorKindRejected, "", "session cookie missing from response")
	}

	var parsed portalErrorResponse
	_ = json.Unmarshal(body, &parsed)
	switch parsed.Error {
	case ReasonInvalidToken:
		return "", newError(ErrorKindRejected, ReasonInvalidToken, "pending token expired")
	case ReasonInvalidCode:
		return "", newError(ErrorKindRejected, ReasonInvalidCode, "wrong verification code")
	}
	config.GetLogger().WithFields(logrus.Fields{
		"module": "portal",
		"status": resp.StatusCode,
		"error":  parsed.Error,
	}).Error("login verification rejected")
	return "", newError(ErrorKindRejected, parsed.Error, "login rejected")
}

// GetSuppliers lists the seller accounts visible to the session.
func (c *Client) GetSuppliers(ctx context.Context) ([]SupplierDTO, error) {
	payload := []suppliersRPCRequest{
		{
			Method:  "getUserSuppliers",
			Params:  map[string]any{},
			ID:      "json-rpc_4",
			JSONRPC: "2.0",
		},
	}

	status, body, _, err := c.request(ctx, http.MethodPost, "/ns/suppliers/suppliers-portal-core/suppliers", nil, payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		config.GetLogger().WithFields(logrus.Fields{
			"module": "portal",
			"status": status,
		}).Error("supplier listing rejected")
		return nil, newError(ErrorKindRejected, "", "unable to fetch suppliers")
	}

	var parsed []suppliersRPCResponse
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed) == 0 {
		return nil, newError(ErrorKindRejected, "", "unable to fetch suppliers")
	}
	return parsed[0].Result.Suppliers, nil
}

// GetFeedbacks fetches one page of unanswered, rated feedbacks, newest
// first. An error is distinguishable from an empty page: the former signals
// the session is no longer accepted.
func (c *Client) GetFeedbacks(ctx context.Context, skip int, take int) ([]FeedbackDTO, error) {
	params := url.Values{}
	params.Set("isAnswered", "false")
	params.Set("metaDataKeyMustNot", "norating")
	params.Set("order", "dateDesc")
	params.Set("skip", fmt.Sprint(skip))
	params.Set("take", fmt.Sprint(take))

	status, body, _, err := c.request(ctx, http.MethodGet, "/ns/api/suppliers-portal-feedbacks-questions/api/v1/feedbacks", params, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		config.GetLogger().WithFields(logrus.Fields{
			"module": "portal",
			"status": status,
		}).Error("feedback fetch rejected")
		return nil, newError(ErrorKindNotAuthenticated, "", "session token not accepted")
	}

	var parsed feedbacksResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, newError(ErrorKindRejected, "", "malformed feedback payload")
	}
	return parsed.Data.Feedbacks, nil
}

// GetCards scans the whole catalog in fixed-size pages until an empty page,
// a failure, or the page ceiling. First-page empty means "not found", a
// later-page failure is surfaced as the error it is.
func (c *Client) GetCards(ctx context.Context, search string) ([]CardDTO, error) {
	maxPages := config.IntFromEnv("WB_CATALOG_MAX_PAGES", defaultMaxCardPages)

	fetchPage := func(offset int) ([]CardDTO, error) {
		payload := cardsRequest{
			Sort: cardsSort{
				Limit:       cardsPageSize,
				Offset:      offset,
				SearchValue: search,
				SortColumn:  "updateAt",
				Ascending:   false,
			},
			Filter: cardsFilter{
				Tags:     []string{},
				Brands:   []string{},
				Subjects: []string{},
				HasPhoto: 0,
			},
		}
		status, body, _, err := c.request(ctx, http.MethodPost, "/ns/viewer/content-card/viewer/tableList", nil, payload)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, newError(ErrorKindNotAuthenticated, "", "session token not accepted")
		}
		var parsed cardsResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, newError(ErrorKindRejected, "", "malformed card payload")
		}
		return parsed.Data.Cards, nil
	}

	first, err := fetchPage(0)
	if err != nil {
		return nil, err
	}
	if len(first) == 0 {
		return nil, newError(ErrorKindNotFound, "", "no cards matched")
	}

	cards := first
	for page := 1; page < maxPages; page++ {
		batch, err := fetchPage(page * cardsPageSize)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		cards = append(cards, batch...)
	}
	return cards, nil
}
