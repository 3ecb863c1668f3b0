package wise

const (
	ProductionURL = "https://api.transferwise.com"
	SandboxURL    = "https://api.sandbox.transferwise.tech"
)

// Endpoints, with %d placeholders for profile and transfer IDs
const (
	endpointProfiles         = "/v2/profiles"
	endpointBalances         = "/v4/profiles/%d/balances"
	endpointRecipients       = "/v1/accounts"
	endpointQuotes           = "/v3/profiles/%d/quotes"
	endpointBalanceMovements = "/v2/profiles/%d/balance-movements"
	endpointTransfers        = "/v1/transfers"
	endpointTransferPayments = "/v3/profiles/%d/transfers/%d/payments"
)

const (
	balanceTypeStandard = "STANDARD"
	balanceTypeSavings  = "SAVINGS"

	payInBalance  = "BALANCE"
	payOutBalance = "BALANCE"

	profileTypePersonal = "personal"
	profileTypeBusiness = "business"

	idempotenceHeader = "X-idempotence-uuid"
)
