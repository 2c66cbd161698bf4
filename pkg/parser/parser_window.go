package parser

// Window specification parsing: OVER clauses, PARTITION BY, ORDER BY, frame specs.
//
// Grammar:
//
//	window_spec   → identifier | "(" [identifier] [PARTITION BY expr_list] [ORDER BY order_list] [frame_spec] ")"
//	frame_spec    → (ROWS|RANGE|GROUPS) frame_extent [EXCLUDE ...]
//	frame_extent  → BETWEEN frame_bound AND frame_bound | frame_bound
//	frame_bound   → UNBOUNDED PRECEDING | UNBOUNDED FOLLOWING | CURRENT ROW | expr PRECEDING | expr FOLLOWING

// parseWindowSpec parses a window specification.
func (p *Parser) parseWindowSpec() *WindowSpec {
	spec := &WindowSpec{}

	// Named window reference
	if p.check(TOKEN_IDENT) {
		spec.Name = p.token.Literal
		p.nextToken()
		return spec
	}

	p.expect(TOKEN_LPAREN)

	// (w ORDER BY ...) refines a named window
	if p.check(TOKEN_IDENT) {
		spec.Name = p.token.Literal
		p.nextToken()
	}

	if p.match(TOKEN_PARTITION) {
		p.expect(TOKEN_BY)
		spec.PartitionBy = p.parseExpressionList()
	}

	if p.match(TOKEN_ORDER) {
		p.expect(TOKEN_BY)
		spec.OrderBy = p.parseOrderByList()
	}

	if p.check(TOKEN_ROWS) || p.check(TOKEN_RANGE) || p.check(TOKEN_GROUPS) {
		spec.Frame = p.parseFrameSpec()
	}

	p.expect(TOKEN_RPAREN)
	return spec
}

// parseFrameSpec parses a window frame specification.
func (p *Parser) parseFrameSpec() *FrameSpec {
	frame := &FrameSpec{}

	switch {
	case p.match(TOKEN_ROWS):
		frame.Type = FrameRows
	case p.match(TOKEN_RANGE):
		frame.Type = FrameRange
	case p.match(TOKEN_GROUPS):
		frame.Type = FrameGroups
	}

	if p.match(TOKEN_BETWEEN) {
		frame.Start = p.parseFrameBound()
		p.expect(TOKEN_AND)
		frame.End = p.parseFrameBound()
	} else {
		frame.Start = p.parseFrameBound()
	}

	// EXCLUDE CURRENT ROW | GROUP | TIES | NO OTHERS
	if p.checkWord("EXCLUDE") {
		p.nextToken()
		for !p.check(TOKEN_RPAREN) && !p.check(TOKEN_EOF) {
			p.nextToken()
		}
	}

	return frame
}

// parseFrameBound parses a frame bound and returns its offset expression,
// or nil for UNBOUNDED and CURRENT ROW.
func (p *Parser) parseFrameBound() Expr {
	switch {
	case p.match(TOKEN_UNBOUNDED):
		if !p.match(TOKEN_PRECEDING) && !p.match(TOKEN_FOLLOWING) {
			p.addError("expected PRECEDING or FOLLOWING after UNBOUNDED")
		}
		return nil

	case p.check(TOKEN_CURRENT) && p.checkPeek(TOKEN_ROW):
		p.nextToken()
		p.nextToken()
		return nil

	default:
		offset := p.parseExpressionWithPrecedence(PrecedenceAddition)
		if !p.match(TOKEN_PRECEDING) && !p.match(TOKEN_FOLLOWING) {
			p.addError("expected PRECEDING or FOLLOWING after frame offset")
		}
		return offset
	}
}
