package library

// Account is a 32-byte public key in lowercase hex.
type Account = string

// Npub is the bech32 form of an Account.
type Npub = string

// RelayURL is a websocket endpoint of a relay.
type RelayURL = string
