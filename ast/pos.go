package ast

import "github.com/rustlite/rustlite/token"

func (p *Path) Pos() token.Span { return p.Span }
func (t *Type) Pos() token.Span { return t.Span }
func (p *Pat) Pos() token.Span  { return p.Span }
func (a *Attr) Pos() token.Span { return a.Span }
func (e *Expr) Pos() token.Span { return e.Span }
func (s *Stmt) Pos() token.Span { return s.Span }
func (it *Item) Pos() token.Span { return it.Span }
func (f *File) Pos() token.Span { return f.Span }
