package protocol

// makeHashPrefix combines three ASCII characters into a 4-byte prefix with the last byte set to zero.
func makeHashPrefix(a, b, c byte) [4]byte {
	return [4]byte{a, b, c, 0}
}

// HashPrefix values for the hash domains an ingesting client has to reproduce.
// These MUST match the rippled enum values.
var (
	HashPrefixTransactionID = makeHashPrefix('T', 'X', 'N') // Transaction ID
	HashPrefixTxNode        = makeHashPrefix('S', 'N', 'D') // Transaction + Metadata leaf
	HashPrefixInnerNode     = makeHashPrefix('M', 'I', 'N') // Inner node (v1 tree)
	HashPrefixLedgerMaster  = makeHashPrefix('L', 'W', 'R') // Ledger header
)

// RippleEpochOffset is the number of seconds between the unix epoch and
// 2000-01-01T00:00:00Z, the origin of every ledger timestamp.
const RippleEpochOffset int64 = 946684800

// GenesisLedger is the first ledger available on mainnet history.
const GenesisLedger uint32 = 32570
