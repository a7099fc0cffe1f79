package mysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pingcap/errors"
)

// GTIDSet is the common contract implemented by MysqlGTIDSet and
// MariadbGTIDSet. Replication consumers that only care about progress
// tracking can stay agnostic of which flavor produced it.
type GTIDSet interface {
	fmt.Stringer

	Encode() []byte
	Contain(other GTIDSet) bool
	Equal(other GTIDSet) bool
	Clone() GTIDSet
}

// MariadbGTID is a single MariaDB global transaction id: domain-id,
// server-id, sequence-number.
type MariadbGTID struct {
	DomainID       uint32
	ServerID       uint32
	SequenceNumber uint64
}

func (g MariadbGTID) String() string {
	return fmt.Sprintf("%d-%d-%d", g.DomainID, g.ServerID, g.SequenceNumber)
}

func parseMariadbGTID(str string) (MariadbGTID, error) {
	parts := strings.Split(strings.TrimSpace(str), "-")
	if len(parts) != 3 {
		return MariadbGTID{}, errors.Errorf("invalid MariaDB GTID %q, expected domain-server-sequence", str)
	}

	domainID, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return MariadbGTID{}, errors.Trace(err)
	}
	serverID, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return MariadbGTID{}, errors.Trace(err)
	}
	seq, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return MariadbGTID{}, errors.Trace(err)
	}

	return MariadbGTID{
		DomainID:       uint32(domainID),
		ServerID:       uint32(serverID),
		SequenceNumber: seq,
	}, nil
}

// MariadbGTIDSet holds the most recent GTID observed per domain, which
// is all a MariaDB master ever reports for a given domain-id.
type MariadbGTIDSet struct {
	Sets map[uint32]MariadbGTID
}

var _ GTIDSet = &MariadbGTIDSet{}

// ParseMariadbGTIDSet parses a comma-separated MariaDB GTID list, e.g.
// "0-1-10,1-2-20".
func ParseMariadbGTIDSet(str string) (GTIDSet, error) {
	s := &MariadbGTIDSet{Sets: make(map[uint32]MariadbGTID)}
	str = strings.TrimSpace(str)
	if str == "" {
		return s, nil
	}

	for _, part := range strings.Split(str, ",") {
		gtid, err := parseMariadbGTID(part)
		if err != nil {
			return nil, errors.Trace(err)
		}
		s.Sets[gtid.DomainID] = gtid
	}
	return s, nil
}

// AddSet records gtid as the latest position observed for its domain,
// replacing any earlier one.
func (s *MariadbGTIDSet) AddSet(gtid MariadbGTID) {
	if s.Sets == nil {
		s.Sets = make(map[uint32]MariadbGTID)
	}
	s.Sets[gtid.DomainID] = gtid
}

func (s *MariadbGTIDSet) Contain(o GTIDSet) bool {
	sub, ok := o.(*MariadbGTIDSet)
	if !ok {
		return false
	}
	for domain, gtid := range sub.Sets {
		cur, ok := s.Sets[domain]
		if !ok || cur.SequenceNumber < gtid.SequenceNumber {
			return false
		}
	}
	return true
}

func (s *MariadbGTIDSet) Equal(o GTIDSet) bool {
	sub, ok := o.(*MariadbGTIDSet)
	if !ok {
		return false
	}
	if len(sub.Sets) != len(s.Sets) {
		return false
	}
	for domain, gtid := range s.Sets {
		og, ok := sub.Sets[domain]
		if !ok || og != gtid {
			return false
		}
	}
	return true
}

func (s *MariadbGTIDSet) String() string {
	parts := make([]string, 0, len(s.Sets))
	for _, gtid := range s.Sets {
		parts = append(parts, gtid.String())
	}
	return strings.Join(parts, ",")
}

func (s *MariadbGTIDSet) Encode() []byte {
	return []byte(s.String())
}

func (s *MariadbGTIDSet) Clone() GTIDSet {
	clone := &MariadbGTIDSet{Sets: make(map[uint32]MariadbGTID, len(s.Sets))}
	for k, v := range s.Sets {
		clone.Sets[k] = v
	}
	return clone
}
