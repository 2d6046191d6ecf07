package middleware

import (
	"github.com/danielgtaylor/huma/v2"
)

// Container накапливает мидлвари для очередного обработчика.
type Container struct {
	list huma.Middlewares
}

func NewContainer() *Container {
	return &Container{}
}

// Add добавляет мидлвари, вызываться они будут в порядке добавления.
func (c *Container) Add(mws ...func(ctx huma.Context, next func(huma.Context))) {
	c.list = append(c.list, mws...)
}

// GetAllAndClear отдает накопленный набор и начинает новый.
func (c *Container) GetAllAndClear() huma.Middlewares {
	out := c.list
	c.list = nil
	return out
}
