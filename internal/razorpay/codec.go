package razorpay

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/railmeal/internal/domain/payment"
)

func encodeOrderRequest(req payment.OrderRequest) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("amount")
	e.Int64(req.Amount)
	e.FieldStart("currency")
	e.Str(req.Currency)
	e.FieldStart("receipt")
	e.Str(req.Receipt)
	e.ObjEnd()
	return e.Bytes()
}

func decodeOrder(data []byte) (*payment.Intent, error) {
	var intent payment.Intent
	d := jx.DecodeBytes(data)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			intent.GatewayOrderID, err = d.Str()
		case "amount":
			intent.Amount, err = d.Int64()
		case "currency":
			intent.Currency, err = d.Str()
		case "receipt":
			intent.Receipt, err = decodeOptionalStr(d)
		case "status":
			intent.Status, err = d.Str()
		default:
			return d.Skip()
		}
		return errors.Wrapf(err, "field %q", key)
	})
	if err != nil {
		return nil, err
	}
	if intent.GatewayOrderID == "" {
		return nil, errors.New("missing order id")
	}
	return &intent, nil
}

func decodeOptionalStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// decodeError reads {"error":{"code":..,"description":..}}. Bodies that do
// not match leave only the status code.
func decodeError(status int, data []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	d := jx.DecodeBytes(data)
	_ = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "error" {
			return d.Skip()
		}
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			var err error
			switch string(key) {
			case "code":
				apiErr.Code, err = decodeOptionalStr(d)
			case "description":
				apiErr.Description, err = decodeOptionalStr(d)
			default:
				return d.Skip()
			}
			return err
		})
	})
	return apiErr
}
