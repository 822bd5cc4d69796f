package services

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// RobokassaClient builds signed redirect URLs and verifies webhook
// signatures. Outgoing: MD5(login:OutSum:InvId:password1). Incoming:
// MD5(OutSum:InvId:password2), compared case-insensitively.
type RobokassaClient struct {
	Login     string
	Password1 string
	Password2 string
	BaseURL   string
}

func NewRobokassaClient(login, password1, password2, baseURL string) *RobokassaClient {
	return &RobokassaClient{
		Login:     login,
		Password1: password1,
		Password2: password2,
		BaseURL:   baseURL,
	}
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// PaymentURL returns the gateway redirect URL for one transaction.
func (r *RobokassaClient) PaymentURL(amount int, invoiceID int64, description string) string {
	outSum := strconv.Itoa(amount)
	signature := md5Hex(fmt.Sprintf("%s:%s:%d:%s", r.Login, outSum, invoiceID, r.Password1))

	q := url.Values{}
	q.Set("MerchantLogin", r.Login)
	q.Set("OutSum", outSum)
	q.Set("InvId", strconv.FormatInt(invoiceID, 10))
	q.Set("Description", description)
	q.Set("SignatureValue", signature)
	return r.BaseURL + "?" + q.Encode()
}

// VerifyWebhook checks an inbound notification signature. OutSum and
// invID are used exactly as received: any tampering with either
// invalidates the digest.
func (r *RobokassaClient) VerifyWebhook(outSum, invID, signature string) bool {
	expected := md5Hex(fmt.Sprintf("%s:%s:%s", outSum, invID, r.Password2))
	return strings.EqualFold(expected, signature)
}
