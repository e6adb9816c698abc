package packet

// Packets that travel in both directions with the same layout.

// KeepAlive carries an echo token. The server sends one periodically and the
// client answers with the same id.
type KeepAlive struct {
	KeepAliveID int32
}

func (*KeepAlive) ID() ID                  { return IDKeepAlive }
func (p *KeepAlive) encode(w *fieldWriter) { w.int32(p.KeepAliveID) }
func (p *KeepAlive) decode(r *fieldReader) { p.KeepAliveID = r.int32() }

// Handshake opens a login. Serverbound it carries "username;host:port";
// clientbound it carries the connection hash ("-" in offline mode).
type Handshake struct {
	Data string
}

func (*Handshake) ID() ID                  { return IDHandshake }
func (p *Handshake) encode(w *fieldWriter) { w.string("data", p.Data) }
func (p *Handshake) decode(r *fieldReader) { p.Data = r.string("data") }

type ChatMessage struct {
	Message string
}

func (*ChatMessage) ID() ID                  { return IDChatMessage }
func (p *ChatMessage) encode(w *fieldWriter) { w.string("message", p.Message) }
func (p *ChatMessage) decode(r *fieldReader) { p.Message = r.string("message") }

// PluginMessage is a custom payload on a named channel.
type PluginMessage struct {
	Channel string
	Data    []byte
}

func (*PluginMessage) ID() ID { return IDPluginMessage }

func (p *PluginMessage) encode(w *fieldWriter) {
	w.string("channel", p.Channel)
	w.blob("data", p.Data)
}

func (p *PluginMessage) decode(r *fieldReader) {
	p.Channel = r.string("channel")
	p.Data = r.blob("data")
}

// Disconnect is terminal for the session in both directions. The status
// response to a ServerListPing is also a Disconnect.
type Disconnect struct {
	Reason string
}

func (*Disconnect) ID() ID                  { return IDDisconnect }
func (p *Disconnect) encode(w *fieldWriter) { w.string("reason", p.Reason) }
func (p *Disconnect) decode(r *fieldReader) { p.Reason = r.string("reason") }
