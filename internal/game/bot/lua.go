package bot

import (
	"context"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"Jaffre/internal/game/table"
)

// DefaultScript 出最小的牌，叫分时能跳过就跳过
const DefaultScript = `
function decide(view, legal)
  local best = 1
  for i, a in ipairs(legal) do
    if a.kind == "skip" then return i end
    if a.kind == "bet" and not a.withoutTrump and a.amount < legal[best].amount then best = i end
    if a.kind == "play" and a.card.value < legal[best].card.value then best = i end
  end
  return best
end
`

// Lua 用脚本做决策；脚本里需要定义 decide(view, legal)，返回 legal 的下标（从 1 开始）
// 脚本只编译一次；LState 不是并发安全的，每次调用从空闲池里取一个独占，各对局互不等待
type Lua struct {
	proto *lua.FunctionProto
	idle  chan *lua.LState
}

// maxIdleStates 空闲池上限，超出的 LState 直接关闭
const maxIdleStates = 16

func NewLua(script string) (*Lua, error) {
	chunk, err := parse.Parse(strings.NewReader(script), "bot.lua")
	if err != nil {
		return nil, fmt.Errorf("load bot script: %w", err)
	}
	proto, err := lua.Compile(chunk, "bot.lua")
	if err != nil {
		return nil, fmt.Errorf("load bot script: %w", err)
	}
	b := &Lua{proto: proto, idle: make(chan *lua.LState, maxIdleStates)}
	L, err := b.newState()
	if err != nil {
		return nil, err
	}
	b.put(L)
	return b, nil
}

func (b *Lua) newState() (*lua.LState, error) {
	L := lua.NewState()
	L.Push(L.NewFunctionFromProto(b.proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.Close()
		return nil, fmt.Errorf("load bot script: %w", err)
	}
	if L.GetGlobal("decide").Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("bot script must define decide(view, legal)")
	}
	return L, nil
}

func (b *Lua) get() (*lua.LState, error) {
	select {
	case L := <-b.idle:
		return L, nil
	default:
		return b.newState()
	}
}

func (b *Lua) put(L *lua.LState) {
	select {
	case b.idle <- L:
	default:
		L.Close()
	}
}

// Close 关闭空闲的 LState；正在执行的调用结束后自行放回或关闭
func (b *Lua) Close() {
	for {
		select {
		case L := <-b.idle:
			L.Close()
		default:
			return
		}
	}
}

func (b *Lua) Decide(ctx context.Context, view table.View, legal []table.Action) (table.Action, error) {
	if len(legal) == 0 {
		return table.Action{}, ErrNoLegalAction
	}
	L, err := b.get()
	if err != nil {
		return table.Action{}, err
	}

	L.SetContext(ctx)
	err = L.CallByParam(lua.P{
		Fn:      L.GetGlobal("decide"),
		NRet:    1,
		Protect: true,
	}, viewTable(L, view), actionsTable(L, legal))
	L.RemoveContext()
	if err != nil {
		// 被打断或出错的 LState 栈状态不可靠，不放回池
		L.Close()
		return table.Action{}, fmt.Errorf("bot script: %w", err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	b.put(L)

	n, ok := ret.(lua.LNumber)
	if !ok {
		return table.Action{}, fmt.Errorf("bot script returned %s, want a number", ret.Type())
	}
	i := int(n)
	if i < 1 || i > len(legal) {
		return table.Action{}, fmt.Errorf("bot script returned index %d of %d", i, len(legal))
	}
	return legal[i-1], nil
}

// ---------------------
//    GO -> LUA 转换
// ---------------------

func cardTable(L *lua.LState, c table.Card) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("color", lua.LString(c.Color.String()))
	t.RawSetString("value", lua.LNumber(c.Value))
	return t
}

func cardsTable(L *lua.LState, cards []table.Card) *lua.LTable {
	t := L.NewTable()
	for i, c := range cards {
		t.RawSetInt(i+1, cardTable(L, c))
	}
	return t
}

func actionsTable(L *lua.LState, legal []table.Action) *lua.LTable {
	t := L.NewTable()
	for i, a := range legal {
		at := L.NewTable()
		at.RawSetString("kind", lua.LString(a.Kind))
		switch a.Kind {
		case table.ActionBet:
			at.RawSetString("amount", lua.LNumber(a.Amount))
			at.RawSetString("withoutTrump", lua.LBool(a.WithoutTrump))
		case table.ActionPlay:
			at.RawSetString("card", cardTable(L, *a.Card))
		}
		t.RawSetInt(i+1, at)
	}
	return t
}

func viewTable(L *lua.LState, v table.View) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("phase", lua.LString(v.Phase))
	t.RawSetString("seat", lua.LNumber(v.Seat))
	t.RawSetString("dealer", lua.LNumber(v.Dealer))
	t.RawSetString("round", lua.LNumber(v.RoundNumber))
	t.RawSetString("hand", cardsTable(L, v.Hand))

	scores := L.NewTable()
	scores.RawSetString("team1", lua.LNumber(v.Scores.Team1))
	scores.RawSetString("team2", lua.LNumber(v.Scores.Team2))
	t.RawSetString("scores", scores)

	if v.Seat >= 0 && v.Seat < table.Seats && v.Seats[v.Seat] != nil {
		t.RawSetString("team", lua.LNumber(v.Seats[v.Seat].Team))
	}
	if v.Trump != nil {
		t.RawSetString("trump", lua.LString(v.Trump.String()))
	}
	if v.WinningBet != nil {
		wb := L.NewTable()
		wb.RawSetString("seat", lua.LNumber(v.WinningBet.Seat))
		wb.RawSetString("amount", lua.LNumber(v.WinningBet.Amount))
		wb.RawSetString("withoutTrump", lua.LBool(v.WinningBet.WithoutTrump))
		t.RawSetString("winningBet", wb)
	}

	bets := L.NewTable()
	for i, b := range v.Bets {
		bt := L.NewTable()
		bt.RawSetString("seat", lua.LNumber(b.Seat))
		bt.RawSetString("amount", lua.LNumber(b.Amount))
		bt.RawSetString("skipped", lua.LBool(b.Skipped))
		bt.RawSetString("withoutTrump", lua.LBool(b.WithoutTrump))
		bets.RawSetInt(i+1, bt)
	}
	t.RawSetString("bets", bets)

	trick := L.NewTable()
	for i, pc := range v.Trick {
		pt := cardTable(L, pc.Card)
		pt.RawSetString("seat", lua.LNumber(pc.Seat))
		trick.RawSetInt(i+1, pt)
	}
	t.RawSetString("trick", trick)
	return t
}
