package strategy

import (
	"math"
	"math/rand/v2"
)

// Jitter 以价格为种子把目标数量缩放到 [70%, 89%]。
// 同一价格总是得到同一结果，因此可以在后续 tick 重新计算某价位“应挂”的数量，
// 与已挂订单比较，无需保存上次的随机值。
func Jitter(size, seedPrice float64) float64 {
	bits := math.Float64bits(seedPrice)
	r := rand.New(rand.NewPCG(bits, bits^0x9e3779b97f4a7c15))
	draw := 70 + r.IntN(20)
	return size * float64(draw) / 100
}
