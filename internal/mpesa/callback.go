package mpesa

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Callback is the decoded asynchronous payment result posted by the
// gateway after an STK push. ResultCode zero means the customer paid;
// any other code is a failure (cancelled prompt, timeout, insufficient
// funds) described by ResultDesc.
type Callback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string

	// Metadata fields, present only on success.
	Receipt         string
	Amount          decimal.Decimal
	Phone           string
	TransactionDate string
}

// Success reports whether the customer completed the payment.
func (c *Callback) Success() bool { return c.ResultCode == 0 }

// DecodeCallback parses the gateway's callback envelope:
//
//	{"Body": {"stkCallback": {..., "CallbackMetadata": {"Item": [...]}}}}
//
// Metadata items are matched by their Name field, not by position, since
// the gateway does not guarantee item ordering.
func DecodeCallback(data []byte) (*Callback, error) {
	var (
		cb    Callback
		found bool
	)
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "Body" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "stkCallback" {
				return d.Skip()
			}
			found = true
			return decodeStkCallback(d, &cb)
		})
	}); err != nil {
		return nil, errors.Wrap(err, "decode callback")
	}
	if !found {
		return nil, errors.New("decode callback: missing Body.stkCallback")
	}
	return &cb, nil
}

func decodeStkCallback(d *jx.Decoder, cb *Callback) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "MerchantRequestID":
			cb.MerchantRequestID, err = d.Str()
		case "CheckoutRequestID":
			cb.CheckoutRequestID, err = d.Str()
		case "ResultCode":
			cb.ResultCode, err = d.Int()
		case "ResultDesc":
			cb.ResultDesc, err = d.Str()
		case "CallbackMetadata":
			err = decodeMetadata(d, cb)
		default:
			err = d.Skip()
		}
		return err
	})
}

func decodeMetadata(d *jx.Decoder, cb *Callback) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "Item" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			return decodeMetadataItem(d, cb)
		})
	})
}

// decodeMetadataItem reads one {"Name": ..., "Value": ...} pair. Value
// may be a number or a string depending on the field, and may be absent
// entirely for balance items.
func decodeMetadataItem(d *jx.Decoder, cb *Callback) error {
	var name, strVal string
	var numVal decimal.Decimal

	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "Name":
			s, err := d.Str()
			if err != nil {
				return err
			}
			name = s
		case "Value":
			switch d.Next() {
			case jx.String:
				s, err := d.Str()
				if err != nil {
					return err
				}
				strVal = s
			case jx.Number:
				n, err := d.Num()
				if err != nil {
					return err
				}
				v, err := decimal.NewFromString(n.String())
				if err != nil {
					return errors.Wrap(err, "parse numeric value")
				}
				numVal = v
				strVal = n.String()
			default:
				return d.Skip()
			}
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return err
	}

	switch name {
	case "MpesaReceiptNumber":
		cb.Receipt = strVal
	case "Amount":
		cb.Amount = numVal
	case "PhoneNumber":
		cb.Phone = strVal
	case "TransactionDate":
		cb.TransactionDate = strVal
	}
	return nil
}
