package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/xenking/railmeal/internal/domain/payment"
)

// VerifySignature checks that c.Signature is the hex HMAC-SHA256 of
// "orderID|paymentID" keyed with the API secret.
func (c *Client) VerifySignature(conf payment.Confirmation) error {
	if conf.GatewayOrderID == "" || conf.PaymentID == "" || conf.Signature == "" {
		return payment.ErrInvalidSignature
	}
	got, err := hex.DecodeString(conf.Signature)
	if err != nil {
		return payment.ErrInvalidSignature
	}
	if !hmac.Equal(got, sign(c.keySecret, conf.GatewayOrderID, conf.PaymentID)) {
		return payment.ErrInvalidSignature
	}
	return nil
}

func sign(secret, orderID, paymentID string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return mac.Sum(nil)
}
