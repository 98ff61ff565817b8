package dto

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// PageQuery 列表接口的 ?page=&page_size= 参数，非法值按未传处理
type PageQuery struct {
	Page     int
	PageSize int
}

// BindPage 收敛交给 repository.NewPagination
func BindPage(c *gin.Context) PageQuery {
	return PageQuery{
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "page_size"),
	}
}

func queryInt(c *gin.Context, key string) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return v
}

// IDRequest 路径参数 :id
type IDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}
