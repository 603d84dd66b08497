package orderbook

type color bool

const (
	red   color = false
	black color = true
)

type rbNode struct {
	price  int64
	level  *PriceLevel
	color  color
	left   *rbNode
	right  *rbNode
	parent *rbNode
}

// priceTree is a red-black tree of price levels for one side of the book.
// All leaves point at a shared black sentinel.
type priceTree struct {
	side Side
	root *rbNode
	nil  *rbNode
	size int
}

func newPriceTree(side Side) *priceTree {
	sentinel := &rbNode{color: black}
	return &priceTree{side: side, root: sentinel, nil: sentinel}
}

func (t *priceTree) len() int { return t.size }

func (t *priceTree) find(price int64) *PriceLevel {
	if n := t.search(price); n != t.nil {
		return n.level
	}
	return nil
}

// upsert returns the level at price, creating it if absent.
func (t *priceTree) upsert(price int64) *PriceLevel {
	parent := t.nil
	cur := t.root
	for cur != t.nil {
		parent = cur
		switch {
		case price < cur.price:
			cur = cur.left
		case price > cur.price:
			cur = cur.right
		default:
			return cur.level
		}
	}

	z := &rbNode{
		price:  price,
		level:  &PriceLevel{Price: price, Side: t.side},
		color:  red,
		left:   t.nil,
		right:  t.nil,
		parent: parent,
	}
	switch {
	case parent == t.nil:
		t.root = z
	case price < parent.price:
		parent.left = z
	default:
		parent.right = z
	}
	t.insertFixup(z)
	t.size++
	return z.level
}

func (t *priceTree) delete(price int64) bool {
	z := t.search(price)
	if z == t.nil {
		return false
	}
	t.deleteNode(z)
	t.size--
	return true
}

func (t *priceTree) lowest() *PriceLevel {
	if n := t.minNode(t.root); n != t.nil {
		return n.level
	}
	return nil
}

func (t *priceTree) highest() *PriceLevel {
	if n := t.maxNode(t.root); n != t.nil {
		return n.level
	}
	return nil
}

func (t *priceTree) ascend(fn func(*PriceLevel) bool) {
	for n := t.minNode(t.root); n != t.nil; n = t.successor(n) {
		if !fn(n.level) {
			return
		}
	}
}

func (t *priceTree) descend(fn func(*PriceLevel) bool) {
	for n := t.maxNode(t.root); n != t.nil; n = t.predecessor(n) {
		if !fn(n.level) {
			return
		}
	}
}

// blackHeight returns the black height of the tree or -1 when a red-black
// property is violated. Used by Ladder.Verify.
func (t *priceTree) blackHeight(n *rbNode) int {
	if n == t.nil {
		return 1
	}
	if n.color == red && (n.left.color == red || n.right.color == red) {
		return -1
	}
	l, r := t.blackHeight(n.left), t.blackHeight(n.right)
	if l < 0 || r < 0 || l != r {
		return -1
	}
	if n.color == black {
		return l + 1
	}
	return l
}

/******************** tree internals ********************/

func (t *priceTree) search(price int64) *rbNode {
	n := t.root
	for n != t.nil {
		switch {
		case price < n.price:
			n = n.left
		case price > n.price:
			n = n.right
		default:
			return n
		}
	}
	return t.nil
}

func (t *priceTree) minNode(n *rbNode) *rbNode {
	if n == t.nil {
		return t.nil
	}
	for n.left != t.nil {
		n = n.left
	}
	return n
}

func (t *priceTree) maxNode(n *rbNode) *rbNode {
	if n == t.nil {
		return t.nil
	}
	for n.right != t.nil {
		n = n.right
	}
	return n
}

func (t *priceTree) successor(n *rbNode) *rbNode {
	if n.right != t.nil {
		return t.minNode(n.right)
	}
	p := n.parent
	for p != t.nil && n == p.right {
		n, p = p, p.parent
	}
	return p
}

func (t *priceTree) predecessor(n *rbNode) *rbNode {
	if n.left != t.nil {
		return t.maxNode(n.left)
	}
	p := n.parent
	for p != t.nil && n == p.left {
		n, p = p, p.parent
	}
	return p
}

func (t *priceTree) replaceChild(parent, old, repl *rbNode) {
	switch {
	case parent == t.nil:
		t.root = repl
	case old == parent.left:
		parent.left = repl
	default:
		parent.right = repl
	}
}

func (t *priceTree) rotateLeft(x *rbNode) {
	y := x.right
	x.right = y.left
	if y.left != t.nil {
		y.left.parent = x
	}
	y.parent = x.parent
	t.replaceChild(x.parent, x, y)
	y.left = x
	x.parent = y
}

func (t *priceTree) rotateRight(x *rbNode) {
	y := x.left
	x.left = y.right
	if y.right != t.nil {
		y.right.parent = x
	}
	y.parent = x.parent
	t.replaceChild(x.parent, x, y)
	y.right = x
	x.parent = y
}

func (t *priceTree) insertFixup(z *rbNode) {
	for z.parent.color == red {
		gp := z.parent.parent
		if z.parent == gp.left {
			uncle := gp.right
			if uncle.color == red {
				z.parent.color, uncle.color, gp.color = black, black, red
				z = gp
				continue
			}
			if z == z.parent.right {
				z = z.parent
				t.rotateLeft(z)
			}
			z.parent.color, z.parent.parent.color = black, red
			t.rotateRight(z.parent.parent)
		} else {
			uncle := gp.left
			if uncle.color == red {
				z.parent.color, uncle.color, gp.color = black, black, red
				z = gp
				continue
			}
			if z == z.parent.left {
				z = z.parent
				t.rotateRight(z)
			}
			z.parent.color, z.parent.parent.color = black, red
			t.rotateLeft(z.parent.parent)
		}
	}
	t.root.color = black
}

func (t *priceTree) transplant(u, v *rbNode) {
	t.replaceChild(u.parent, u, v)
	v.parent = u.parent
}

func (t *priceTree) deleteNode(z *rbNode) {
	y := z
	removed := y.color
	var x *rbNode

	switch {
	case z.left == t.nil:
		x = z.right
		t.transplant(z, z.right)
	case z.right == t.nil:
		x = z.left
		t.transplant(z, z.left)
	default:
		y = t.minNode(z.right)
		removed = y.color
		x = y.right
		if y.parent == z {
			x.parent = y
		} else {
			t.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		t.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}

	if removed == black {
		t.deleteFixup(x)
	}
	// the sentinel's parent is scratch space during fixup
	t.nil.parent = nil
}

func (t *priceTree) deleteFixup(x *rbNode) {
	for x != t.root && x.color == black {
		if x == x.parent.left {
			w := x.parent.right
			if w.color == red {
				w.color, x.parent.color = black, red
				t.rotateLeft(x.parent)
				w = x.parent.right
			}
			if w.left.color == black && w.right.color == black {
				w.color = red
				x = x.parent
				continue
			}
			if w.right.color == black {
				w.left.color, w.color = black, red
				t.rotateRight(w)
				w = x.parent.right
			}
			w.color, x.parent.color, w.right.color = x.parent.color, black, black
			t.rotateLeft(x.parent)
			x = t.root
		} else {
			w := x.parent.left
			if w.color == red {
				w.color, x.parent.color = black, red
				t.rotateRight(x.parent)
				w = x.parent.left
			}
			if w.left.color == black && w.right.color == black {
				w.color = red
				x = x.parent
				continue
			}
			if w.left.color == black {
				w.right.color, w.color = black, red
				t.rotateLeft(w)
				w = x.parent.left
			}
			w.color, x.parent.color, w.left.color = x.parent.color, black, black
			t.rotateRight(x.parent)
			x = t.root
		}
	}
	x.color = black
}
