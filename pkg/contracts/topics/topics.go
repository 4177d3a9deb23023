package topics

const (
	// Eventos do ledger (apostas e ajustes de saldo)
	LedgerEvents = "ledger_events"
)
