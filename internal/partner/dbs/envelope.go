package dbs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	ApplicationApproved = "APPROVED"
	ApplicationRejected = "REJECTED"

	ReceiptAccepted = "ACCEPTED"
	ReceiptRejected = "REJECTED"

	timestampLayout = "2006-01-02T15:04:05.000"
)

type Header struct {
	MsgID     string `json:"msgId"`
	OrgID     string `json:"orgId"`
	TimeStamp string `json:"timeStamp"`
}

type Envelope struct {
	Header Header `json:"header"`
	Data   any    `json:"data"`
}

type ErrorItem struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type LoanStatusAck struct {
	ApplicationID string      `json:"applicationId"`
	ReceiptStatus string      `json:"receiptStatus"`
	ErrorList     []ErrorItem `json:"errorList,omitempty"`
}

func NewHeader(orgID string, now time.Time) Header {
	return Header{MsgID: uuid.NewString(), OrgID: orgID, TimeStamp: now.Format(timestampLayout)}
}

func MarshalEnvelope(orgID string, data any, now time.Time) ([]byte, error) {
	return json.Marshal(Envelope{Header: NewHeader(orgID, now), Data: data})
}
