package response

import (
	"github.com/gin-gonic/gin"
)

type Envelope struct {
	Success bool     `json:"success"`
	Data    any      `json:"data"`
	Errors  []string `json:"errors"`
}

// Partner is the body shape partner integrations expect.
type Partner struct {
	ResponseCode    string `json:"responseCode"`
	ResponseMessage string `json:"responseMessage"`
	Data            any    `json:"data,omitempty"`
}

func OK(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data, Errors: []string{}})
}

func Error(c *gin.Context, status int, codes ...string) {
	if codes == nil {
		codes = []string{}
	}
	c.JSON(status, Envelope{Success: false, Data: nil, Errors: codes})
}

// Abort writes the error envelope and stops the handler chain.
func Abort(c *gin.Context, status int, codes ...string) {
	if codes == nil {
		codes = []string{}
	}
	c.AbortWithStatusJSON(status, Envelope{Success: false, Data: nil, Errors: codes})
}

func PartnerReply(c *gin.Context, status int, code, message string, data any) {
	c.JSON(status, Partner{ResponseCode: code, ResponseMessage: message, Data: data})
}

func AbortPartner(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Partner{ResponseCode: code, ResponseMessage: message})
}
