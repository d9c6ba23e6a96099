package portal

import "encoding/json"

// SupplierDTO is one seller account visible to the session.
type SupplierDTO struct {
	ID       string `json:"id"`
	OldID    int    `json:"oldID"`
	Name     string `json:"name"`
	FullName string `json:"fullName"`
}

type PhotoLink struct {
	MiniSize string `json:"miniSize"`
	FullSize string `json:"fullSize"`
}

// FeedbackDTO is one review from the unanswered-feed page. NmId arrives as
// a bare number; the local store keys articles by its string form.
type FeedbackDTO struct {
	ID               string      `json:"id"`
	Text             string      `json:"text"`
	ProductValuation int         `json:"productValuation"`
	CreatedDate      string      `json:"createdDate"`
	NmId             json.Number `json:"nmId"`
	PhotoLinks       []PhotoLink `json:"photoLinks"`
}

type CardSize struct {
	WbSize string   `json:"wbSize"`
	Skus   []string `json:"skus"`
}

// CardDTO is one catalog product card. The viewer endpoint returns some
// attribute columns under localized keys.
type CardDTO struct {
	NmID       json.Number `json:"nmID"`
	VendorCode string      `json:"vendorCode"`
	Brand      string      `json:"Бренд"`
	Subject    string      `json:"Предмет"`
	Colors     []string    `json:"Цвет"`
	Sizes      []CardSize  `json:"size"`
}

type loginByPhoneRequest struct {
	Phone                        string `json:"phone"`
	IsTermsAndConditionsAccepted bool   `json:"is_terms_and_conditions_accepted"`
}

type loginByPhoneResponse struct {
	Token string `json:"token"`
}

type loginRequest struct {
	Options loginOptions `json:"options"`
	Token   string       `json:"token"`
	Device  string       `json:"device"`
}

type loginOptions struct {
	NotifyCode string `json:"notify_code"`
}

type portalErrorResponse struct {
	Error string `json:"error"`
}

type suppliersRPCRequest struct {
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
	ID      string         `json:"id"`
	JSONRPC string         `json:"jsonrpc"`
}

type suppliersRPCResponse struct {
	Result struct {
		Suppliers []SupplierDTO `json:"suppliers"`
	} `json:"result"`
}

type feedbacksResponse struct {
	Data struct {
		Feedbacks []FeedbackDTO `json:"feedbacks"`
	} `json:"data"`
}

type cardsRequest struct {
	Sort   cardsSort   `json:"sort"`
	Filter cardsFilter `json:"filter"`
}

type cardsSort struct {
	Limit       int    `json:"limit"`
	Offset      int    `json:"offset"`
	SearchValue string `json:"searchValue"`
	SortColumn  string `json:"sortColumn"`
	Ascending   bool   `json:"ascending"`
}

type cardsFilter struct {
	Tags     []string `json:"tags"`
	Brands   []string `json:"brands"`
	Subjects []string `json:"subjects"`
	HasPhoto int      `json:"hasPhoto"`
}

type cardsResponse struct {
	Data struct {
		Cards []CardDTO `json:"cards"`
	} `json:"data"`
}
