package snapshot

import (
	"github.com/lkarlslund/gonk"
)

// Attribute is an index into the snapshot's property dictionary. Names
// resolve to indexes through Snapshot.AttributeIndex, matching case
// insensitively the way LDAP attribute names do.
type Attribute uint32

// AttributeBag maps attribute indexes to decoded values for one object,
// sorted and compact. Objects typically carry 10-40 attributes, so a sorted
// array beats a hash map on both memory and lookups here.
type AttributeBag struct {
	m gonk.Gonk[attributeValuesItem]
}

type attributeValuesItem struct {
	a Attribute
	v AttributeValues
}

func (avi attributeValuesItem) Compare(other attributeValuesItem) int {
	return int(avi.a) - int(other.a)
}

func (avi attributeValuesItem) Equal(other attributeValuesItem) bool {
	return avi.a == other.a
}

func (avi attributeValuesItem) LessThan(other attributeValuesItem) bool {
	return avi.a < other.a
}

func (bag *AttributeBag) init(preloadAttributes int) {
	bag.m.Init(preloadAttributes)
}

func (bag *AttributeBag) Get(a Attribute) (AttributeValues, bool) {
	item, found := bag.m.Load(attributeValuesItem{a: a})
	return item.v, found
}

func (bag *AttributeBag) Set(a Attribute, values AttributeValues) {
	bag.m.Store(attributeValuesItem{a: a, v: values})
}

func (bag *AttributeBag) Len() int {
	return bag.m.Len()
}

func (bag *AttributeBag) Iterate(f func(attr Attribute, values AttributeValues) bool) {
	bag.m.Range(func(item *attributeValuesItem) bool {
		return f(item.a, item.v)
	})
}
