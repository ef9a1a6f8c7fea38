package status

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"dual-trader-go/market"
	"dual-trader-go/order"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	bboStyle    = cellStyle.Faint(true)
)

type level struct {
	price    float64
	unfilled float64
}

// Pulse 渲染活跃订单相对最优买卖价的位置；订单集合未变化时不重复输出。
type Pulse struct {
	rules order.SymbolRules
	last  []level
	seen  bool
}

func NewPulse(rules order.SymbolRules) *Pulse {
	return &Pulse{rules: rules}
}

type row struct {
	price float64
	cells []string
	bbo   bool
}

// Render 返回表格文本；与上次输出的 (价格, 未成交量) 集合相同时第二个返回值为 false。
func (p *Pulse) Render(d market.Depth, orders []order.Order, now time.Time) (string, bool) {
	levels := make([]level, 0, len(orders))
	for _, o := range orders {
		levels = append(levels, level{price: o.Price, unfilled: o.Unfilled()})
	}
	sort.Slice(levels, func(i, j int) bool {
		if levels[i].price == levels[j].price {
			return levels[i].unfilled < levels[j].unfilled
		}
		return levels[i].price < levels[j].price
	})
	if p.seen && slices.Equal(levels, p.last) {
		return "", false
	}
	p.seen = true
	p.last = levels

	rows := []row{
		{price: d.Ask, bbo: true, cells: []string{"", "ask (best)", p.rules.FormatPrice(d.Ask), p.distance(0), p.rules.FormatQty(d.AskQty), "", "", ""}},
		{price: d.Bid, bbo: true, cells: []string{"", "bid (best)", p.rules.FormatPrice(d.Bid), p.distance(0), p.rules.FormatQty(d.BidQty), "", "", ""}},
	}
	for _, o := range orders {
		ref := d.Bid
		if o.Side == order.Sell {
			ref = d.Ask
		}
		rows = append(rows, row{price: o.Price, cells: []string{
			o.ClientID,
			o.ID,
			p.rules.FormatPrice(o.Price),
			p.distance(o.Price - ref),
			p.rules.FormatQty(o.Unfilled()),
			fmt.Sprintf("%.2f", o.Unfilled()*o.Price),
			string(o.Status),
			now.Sub(o.CreatedAt).Round(time.Microsecond).String() + " ago",
		}})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].price > rows[j].price })

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("", "Id", "Price", "Distance to bbo", "Quantity", "Value", "Status", "Time since last update")
	bbo := make(map[int]bool, 2)
	for i, r := range rows {
		t.Row(r.cells...)
		if r.bbo {
			bbo[i] = true
		}
	}
	t.StyleFunc(func(r, _ int) lipgloss.Style {
		switch {
		case r == table.HeaderRow:
			return headerStyle
		case bbo[r]:
			return bboStyle
		default:
			return cellStyle
		}
	})
	return t.String(), true
}

// distance 以 tick 数表示的距离。
func (p *Pulse) distance(diff float64) string {
	if p.rules.TickSize <= 0 {
		return p.rules.FormatPrice(diff)
	}
	return fmt.Sprintf("%+.1f ticks", diff/p.rules.TickSize)
}
