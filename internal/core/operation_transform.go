package core

// TransformOperations transforms concurrent operations a and b, both made
// against the same snapshot, into a' and b' such that applying a then b'
// gives the same snapshot as b then a'. Where the two conflict on the same
// pathname, b's effect is kept.
func TransformOperations(a, b Operation) (Operation, Operation, error) {
	if _, ok := a.(*NoOperation); ok {
		return a, b, nil
	}
	if _, ok := b.(*NoOperation); ok {
		return a, b, nil
	}
	if operationRank(a) > operationRank(b) {
		bPrime, aPrime, err := transformOrdered(b, a)
		return aPrime, bPrime, err
	}
	return transformOrdered(a, b)
}

func operationRank(op Operation) int {
	switch op.(type) {
	case *AddFileOperation:
		return 0
	case *MoveFileOperation:
		return 1
	case *EditFileOperation:
		return 2
	case *SetFileMetadataOperation:
		return 3
	}
	return 4
}

var noop = &NoOperation{}

// transformOrdered handles pairs where a's rank is not above b's.
func transformOrdered(a, b Operation) (Operation, Operation, error) {
	switch x := a.(type) {
	case *AddFileOperation:
		switch y := b.(type) {
		case *AddFileOperation:
			if x.pathname == y.pathname {
				return noop, b, nil
			}
		case *MoveFileOperation:
			switch {
			case x.pathname == y.pathname && y.IsRemoveFile():
				return a, noop, nil
			case x.pathname == y.pathname:
				return NewAddFileOperation(y.newPathname, x.file.Clone()), b, nil
			case x.pathname == y.newPathname:
				return a, NewRemoveFileOperation(y.pathname), nil
			}
		case *EditFileOperation:
			if x.pathname == y.pathname {
				return a, noop, nil
			}
		case *SetFileMetadataOperation:
			if x.pathname == y.pathname {
				file := x.file.Clone()
				file.SetMetadata(y.metadata)
				return NewAddFileOperation(x.pathname, file), b, nil
			}
		}
		return a, b, nil

	case *MoveFileOperation:
		switch y := b.(type) {
		case *MoveFileOperation:
			return transformMoves(x, y)
		case *EditFileOperation:
			if x.pathname == y.pathname {
				if x.IsRemoveFile() {
					return a, noop, nil
				}
				return a, NewEditFileOperation(x.newPathname, y.op), nil
			}
			if x.newPathname == y.pathname {
				return a, noop, nil
			}
		case *SetFileMetadataOperation:
			if x.pathname == y.pathname {
				if x.IsRemoveFile() {
					return a, noop, nil
				}
				return a, NewSetFileMetadataOperation(x.newPathname, y.metadata), nil
			}
			if x.newPathname == y.pathname {
				return a, noop, nil
			}
		}
		return a, b, nil

	case *EditFileOperation:
		if y, ok := b.(*EditFileOperation); ok && x.pathname == y.pathname {
			xOp, yOp, err := TransformEditOperations(x.op, y.op)
			if err != nil {
				return nil, nil, err
			}
			return NewEditFileOperation(x.pathname, xOp), NewEditFileOperation(y.pathname, yOp), nil
		}
		return a, b, nil

	case *SetFileMetadataOperation:
		if y, ok := b.(*SetFileMetadataOperation); ok && x.pathname == y.pathname {
			return noop, b, nil
		}
		return a, b, nil
	}
	return a, b, nil
}

func transformMoves(m1, m2 *MoveFileOperation) (Operation, Operation, error) {
	p1, n1 := m1.pathname, m1.newPathname
	p2, n2 := m2.pathname, m2.newPathname
	switch {
	case p1 == n1 && p2 == n2:
		return noop, noop, nil
	case p1 == n1:
		return noop, m2, nil
	case p2 == n2:
		return m1, noop, nil
	case p1 == p2 && n1 == n2:
		return noop, noop, nil
	// Both sides moved the same file. Whichever move ran first may have
	// replaced a file at its target, so that target is removed on both
	// sides and b's outcome is kept for the source.
	case p1 == p2 && n1 == "":
		return NewRemoveFileOperation(n2), NewRemoveFileOperation(n2), nil
	case p1 == p2:
		return NewRemoveFileOperation(n1), NewMoveFileOperation(n1, n2), nil
	case p1 == n2 && p2 == n1:
		return NewRemoveFileOperation(n2), NewRemoveFileOperation(n1), nil
	case n1 != "" && n1 == n2:
		return NewRemoveFileOperation(p1), m2, nil
	case n2 == p1:
		return m1, NewMoveFileOperation(p2, n1), nil
	case n1 == p2:
		return NewMoveFileOperation(p1, n2), m2, nil
	}
	return m1, m2, nil
}
