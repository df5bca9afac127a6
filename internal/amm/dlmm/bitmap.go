package dlmm

// hasLiquidity reports whether the bitmap marks array idx as non-empty.
func (p *Pool) hasLiquidity(idx int64) bool {
	switch {
	case idx >= -bitmapHalf && idx < bitmapHalf:
		pos := idx + bitmapHalf
		return p.Bitmap[pos/64]&(1<<(pos%64)) != 0
	case p.Extension == nil:
		return false
	case idx >= bitmapHalf && idx <= MaxBinArrayIndex:
		off := idx - bitmapHalf
		group, pos := off/bitmapHalf, off%bitmapHalf
		return p.Extension.Positive[group][pos/64]&(1<<(pos%64)) != 0
	case idx < -bitmapHalf && idx >= MinBinArrayIndex:
		off := -idx - bitmapHalf - 1
		group, pos := off/bitmapHalf, off%bitmapHalf
		return p.Extension.Negative[group][pos/64]&(1<<(pos%64)) != 0
	}
	return false
}

// SetLiquidity marks array idx in the bitmap. Indexes outside the covered
// range are ignored.
func (p *Pool) SetLiquidity(idx int64, set bool) {
	var word *uint64
	var bit uint64
	switch {
	case idx >= -bitmapHalf && idx < bitmapHalf:
		pos := idx + bitmapHalf
		word, bit = &p.Bitmap[pos/64], 1<<(pos%64)
	case idx >= bitmapHalf && idx <= MaxBinArrayIndex:
		if p.Extension == nil {
			p.Extension = new(BitmapExtension)
		}
		off := idx - bitmapHalf
		group, pos := off/bitmapHalf, off%bitmapHalf
		word, bit = &p.Extension.Positive[group][pos/64], 1<<(pos%64)
	case idx < -bitmapHalf && idx >= MinBinArrayIndex:
		if p.Extension == nil {
			p.Extension = new(BitmapExtension)
		}
		off := -idx - bitmapHalf - 1
		group, pos := off/bitmapHalf, off%bitmapHalf
		word, bit = &p.Extension.Negative[group][pos/64], 1<<(pos%64)
	default:
		return
	}
	if set {
		*word |= bit
	} else {
		*word &^= bit
	}
}

// nextArrayWithLiquidity finds the nearest marked array strictly past from
// in the swap direction.
func (p *Pool) nextArrayWithLiquidity(from int64, swapForY bool) (int64, bool) {
	if swapForY {
		for idx := from - 1; idx >= MinBinArrayIndex; idx-- {
			if p.Extension == nil && idx < -bitmapHalf {
				return 0, false
			}
			if p.hasLiquidity(idx) {
				return idx, true
			}
		}
		return 0, false
	}
	for idx := from + 1; idx <= MaxBinArrayIndex; idx++ {
		if p.Extension == nil && idx >= bitmapHalf {
			return 0, false
		}
		if p.hasLiquidity(idx) {
			return idx, true
		}
	}
	return 0, false
}
