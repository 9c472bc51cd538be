package router

import "github.com/gin-gonic/gin"

// 每个模块提供一个 Register 方法，挂载到带 URL 前缀的路由组上：
type Registrar interface{ Register(rg *gin.RouterGroup) }

// 全局注册表（集中声明要装配的模块）
var registrars []Registrar

func Register(rs ...Registrar) { registrars = append(registrars, rs...) }

func MountAll(rg *gin.RouterGroup) {
	for _, r := range registrars {
		r.Register(rg)
	}
}
