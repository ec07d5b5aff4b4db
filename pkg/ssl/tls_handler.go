package ssl

import (
	"strconv"

	"Inkwell/pkg/zlog"

	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// TlsHandler 将明文请求重定向到 https，并附带常用安全头
func TlsHandler(host string, port int, forceTLS bool) gin.HandlerFunc {
	secureMiddleware := secure.New(secure.Options{
		SSLRedirect:        forceTLS,
		SSLHost:            host + ":" + strconv.Itoa(port),
		FrameDeny:          true,
		ContentTypeNosniff: true,
	})
	return func(c *gin.Context) {
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			// Process 已经写入了重定向响应
			zlog.Debug("secure middleware stopped request", zap.Error(err))
			c.Abort()
			return
		}
		c.Next()
	}
}
