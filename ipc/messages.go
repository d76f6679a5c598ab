package ipc

// These constants must stay in sync with the on-device helper.
const (
	TypeHello = "hello"
	TypeAck   = "ack"
)

// HelloMessage is the first thing the helper sends after connecting.
type HelloMessage struct {
	Device string `json:"device"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type AckMessage struct {
	Status string `json:"status"`
}
