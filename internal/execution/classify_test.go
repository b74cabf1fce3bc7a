package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		body string
		want Result
	}{
		{
			name: "filled uses executed quote over quantity",
			body: `{"id":"1","status":"Filled","price":"100.00","executedQuantity":"2","executedQuoteQuantity":"200.5"}`,
			want: Filled(100.25),
		},
		{
			name: "filled falls back to response price",
			body: `{"id":"1","status":"Filled","price":"101.50","executedQuantity":"0"}`,
			want: Filled(101.5),
		},
		{
			name: "filled falls back to request price",
			body: `{"id":"1","status":"Filled","symbol":"SOL_USDC"}`,
			want: Filled(99.99),
		},
		{
			name: "expired",
			body: `{"id":"1","status":"Expired","price":"99.99"}`,
			want: Expired("Expired"),
		},
		{
			name: "cancelled counts as expired",
			body: `{"id":"1","status":"Cancelled","price":"99.99"}`,
			want: Expired("Cancelled"),
		},
		{
			name: "new order is created",
			body: `{"id":"1","status":"New","price":"99.99"}`,
			want: Created(),
		},
		{
			name: "plain insufficient funds",
			body: `Insufficient funds`,
			want: InsufficientFunds(),
		},
		{
			name: "json string insufficient funds",
			body: `"Insufficient funds"`,
			want: InsufficientFunds(),
		},
		{
			name: "single field object",
			body: `{"error":"x"}`,
			want: Overloaded(`{"error":"x"}`),
		},
		{
			name: "two field error object",
			body: `{"code":"INVALID_ORDER","message":"bad"}`,
			want: Overloaded(`{"code":"INVALID_ORDER","message":"bad"}`),
		},
		{
			name: "empty body",
			body: ``,
			want: Overloaded(""),
		},
		{
			name: "one character",
			body: `x`,
			want: Overloaded("x"),
		},
		{
			name: "array",
			body: `[]`,
			want: Overloaded("[]"),
		},
		{
			name: "other text",
			body: `Service Unavailable`,
			want: Unexpected("Service Unavailable"),
		},
		{
			name: "unknown status",
			body: `{"id":"1","status":"PartiallyFilled","price":"1"}`,
			want: Unexpected(`{"id":"1","status":"PartiallyFilled","price":"1"}`),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify([]byte(tc.body), 99.99))
		})
	}
}

func TestResult_Predicates(t *testing.T) {
	assert.True(t, Expired("Expired").Recoverable())
	assert.False(t, Overloaded("").Recoverable())
	assert.True(t, Filled(1).Accepted())
	assert.True(t, Created().Accepted())
	assert.False(t, InsufficientFunds().Accepted())
	assert.Equal(t, "Filled(100.25)", Filled(100.25).String())
	assert.Equal(t, "Unexpected(boom)", Unexpected("boom").String())
}
