package ws

// TransportKind 连接的传输方式
type TransportKind string

const (
	KindDuplex TransportKind = "duplex"
	KindStream TransportKind = "stream"
)

// Handle 一个存活的客户端连接。
// Send 不阻塞调用方：连接已关闭或缓冲已满时返回 false，绝不 panic。
type Handle interface {
	Send(msg []byte) bool
	Close()
	Kind() TransportKind
}

// Observer 连接与投递的观测钩子，metrics 包实现它
type Observer interface {
	ConnectionOpened(kind TransportKind)
	ConnectionClosed(kind TransportKind)
	Delivered(target string, n int)
	DeliveryFailed(target string)
	HeartbeatSwept(probed, pruned int)
}

type nopObserver struct{}

func (nopObserver) ConnectionOpened(TransportKind) {}
func (nopObserver) ConnectionClosed(TransportKind) {}
func (nopObserver) Delivered(string, int)          {}
func (nopObserver) DeliveryFailed(string)          {}
func (nopObserver) HeartbeatSwept(int, int)        {}
