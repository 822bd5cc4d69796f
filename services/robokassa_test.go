package services

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"testing"
)

func testGateway() *RobokassaClient {
	return NewRobokassaClient("crisha", "pass1", "pass2", "https://auth.robokassa.ru/Merchant/Index.aspx")
}

func TestPaymentURLSignature(t *testing.T) {
	g := testGateway()
	raw := g.PaymentURL(990, 17, "Crisha: 20 contract checks (pro)")

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	q := u.Query()
	if q.Get("OutSum") != "990" || q.Get("InvId") != "17" || q.Get("MerchantLogin") != "crisha" {
		t.Errorf("unexpected query: %v", q)
	}

	sum := md5.Sum([]byte("crisha:990:17:pass1"))
	if got := q.Get("SignatureValue"); got != hex.EncodeToString(sum[:]) {
		t.Errorf("signature = %s, want %s", got, hex.EncodeToString(sum[:]))
	}
}

func TestVerifyWebhook(t *testing.T) {
	g := testGateway()
	sum := md5.Sum([]byte("990:17:pass2"))
	sig := hex.EncodeToString(sum[:])

	if !g.VerifyWebhook("990", "17", sig) {
		t.Error("valid signature rejected")
	}
	if !g.VerifyWebhook("990", "17", strings.ToUpper(sig)) {
		t.Error("signature comparison must be case-insensitive")
	}
}

func TestVerifyWebhookTamperedFields(t *testing.T) {
	g := testGateway()
	sum := md5.Sum([]byte("990:17:pass2"))
	sig := hex.EncodeToString(sum[:])

	if g.VerifyWebhook("9900", "17", sig) {
		t.Error("altered amount must fail verification")
	}
	if g.VerifyWebhook("990", "18", sig) {
		t.Error("altered invoice id must fail verification")
	}
	if g.VerifyWebhook("990", "17", fmt.Sprintf("%x", md5.Sum([]byte("wrong")))) {
		t.Error("wrong signature must fail verification")
	}
}
