package records

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRecord struct {
	ID       string `json:"_id"`
	CreateBy string `json:"createBy"`
	Deleted  bool   `json:"deleted"`
}

func (r sampleRecord) RecordID() string      { return r.ID }
func (r sampleRecord) RecordOwnerID() string { return r.CreateBy }

func stringPointer(value string) *string {
	return &value
}

func TestFlattenLinksJoinsResolvedNamesInOrder(testContext *testing.T) {
	rows := []linkRow{
		{RecordID: "m-1", TargetID: "c-2", ResolvedID: stringPointer("c-2"), FirstName: stringPointer("Alan"), LastName: stringPointer("Turing")},
		{RecordID: "m-2", TargetID: "c-9", ResolvedID: stringPointer("c-9"), FirstName: stringPointer("Other")},
		{RecordID: "m-1", TargetID: "c-missing"},
		{RecordID: "m-1", TargetID: "c-1", ResolvedID: stringPointer("c-1"), FirstName: stringPointer("Ada"), LastName: stringPointer("Lovelace")},
	}

	ids, names := flattenLinks(rows, "m-1")
	require.Equal(testContext, []string{"c-2", "c-missing", "c-1"}, ids)
	require.Equal(testContext, "Alan Turing, Ada Lovelace", names)
}

func TestFlattenLinksWithoutRowsYieldsEmptyValues(testContext *testing.T) {
	ids, names := flattenLinks(nil, "m-1")
	require.NotNil(testContext, ids)
	require.Empty(testContext, ids)
	require.Equal(testContext, "", names)

	ids, names = flattenLinks([]linkRow{{RecordID: "m-1", TargetID: "gone"}}, "m-1")
	require.Equal(testContext, []string{"gone"}, ids)
	require.Equal(testContext, "", names)
}

func TestDisplayName(testContext *testing.T) {
	cases := []struct {
		first, last *string
		expected    string
	}{
		{stringPointer("Ada"), stringPointer("Lovelace"), "Ada Lovelace"},
		{stringPointer("Ada"), nil, "Ada"},
		{nil, stringPointer("Lovelace"), "Lovelace"},
		{stringPointer(""), stringPointer(""), ""},
		{nil, nil, ""},
	}
	for _, testCase := range cases {
		assert.Equal(testContext, testCase.expected, displayName(testCase.first, testCase.last))
	}
}

func TestViewMarshalJSONMergesComputedFields(testContext *testing.T) {
	view := View[sampleRecord]{
		Record: sampleRecord{ID: "m-1", CreateBy: "u-1"},
		names:  map[string]string{"createdByName": "Olivia Owner", "attendeesNames": ""},
		links:  map[string][]string{"attendees": nil},
	}

	encoded, err := json.Marshal(view)
	require.NoError(testContext, err)

	var decoded map[string]any
	require.NoError(testContext, json.Unmarshal(encoded, &decoded))
	require.Equal(testContext, "m-1", decoded["_id"])
	require.Equal(testContext, "u-1", decoded["createBy"])
	require.Equal(testContext, false, decoded["deleted"])
	require.Equal(testContext, "Olivia Owner", decoded["createdByName"])
	require.Equal(testContext, "", decoded["attendeesNames"])
	require.Equal(testContext, []any{}, decoded["attendees"])
	require.Equal(testContext, "", view.Name("unknownField"))
}

func TestUniqueIDsDropsBlanksAndDuplicates(testContext *testing.T) {
	require.Equal(testContext, []string{"a", "b"}, uniqueIDs([]string{"a", "", "b", "a"}))
	require.Empty(testContext, uniqueIDs(nil))
}

func TestKindOfClassifiesServiceErrors(testContext *testing.T) {
	cause := errors.New("disk full")
	err := newServiceError(opDelete, "update_failed", ErrPersistence, cause)

	require.ErrorIs(testContext, err, ErrPersistence)
	require.ErrorIs(testContext, err, cause)
	require.Equal(testContext, ErrPersistence, KindOf(err))
	require.Equal(testContext, "records.delete.update_failed: disk full", err.Error())

	require.Nil(testContext, KindOf(nil))
	require.Equal(testContext, ErrRecordNotFound, KindOf(newServiceError(opGet, "not_found", ErrRecordNotFound, nil)))
	require.Equal(testContext, ErrPersistence, KindOf(errors.New("unclassified")))
}

func TestDescriptorValidate(testContext *testing.T) {
	require.NoError(testContext, testDescriptor().validate())

	missingOwner := testDescriptor()
	missingOwner.OwnerColumn = ""
	require.ErrorIs(testContext, missingOwner.validate(), errInvalidDescriptor)

	brokenRelation := testDescriptor()
	brokenRelation.Relations[0].LinkTable = ""
	require.ErrorIs(testContext, brokenRelation.validate(), errInvalidDescriptor)

	column, ok := testDescriptor().filterColumn("createBy")
	require.True(testContext, ok)
	require.Equal(testContext, "create_by", column)
}
