package schema

// Kind 成就类型（封闭集合，决定图标/颜色与简历分区）
type Kind string

const (
	KindEducation     Kind = "education"
	KindInternship    Kind = "internship"
	KindProject       Kind = "project"
	KindCourse        Kind = "course"
	KindHackathon     Kind = "hackathon"
	KindCertification Kind = "certification"
)

// AllKinds 返回全部成就类型（录入表单顺序）
func AllKinds() []Kind {
	return []Kind{
		KindInternship,
		KindEducation,
		KindCourse,
		KindProject,
		KindHackathon,
		KindCertification,
	}
}

// Valid 是否为已知类型
func (k Kind) Valid() bool {
	switch k {
	case KindEducation, KindInternship, KindProject, KindCourse, KindHackathon, KindCertification:
		return true
	default:
		return false
	}
}

// Label 展示名
func (k Kind) Label() string {
	switch k {
	case KindEducation:
		return "Education"
	case KindInternship:
		return "Internship"
	case KindProject:
		return "Project"
	case KindCourse:
		return "Course"
	case KindHackathon:
		return "Hackathon"
	case KindCertification:
		return "Certification"
	default:
		return string(k)
	}
}

// Verification 认证状态，仅用于展示
type Verification string

const (
	VerificationVerified   Verification = "verified"
	VerificationPending    Verification = "pending"
	VerificationUnverified Verification = "unverified"
)

func (v Verification) Valid() bool {
	switch v {
	case VerificationVerified, VerificationPending, VerificationUnverified:
		return true
	default:
		return false
	}
}

// Entity 记录集合（与表名一致，订阅与变更日志都按它区分）
type Entity string

const (
	EntityAchievements Entity = "achievements"
	EntityProfiles     Entity = "profiles"
	EntityIntegrations Entity = "integration_connections"
)

func (e Entity) Valid() bool {
	switch e {
	case EntityAchievements, EntityProfiles, EntityIntegrations:
		return true
	default:
		return false
	}
}

// ChangeOp 变更类型
type ChangeOp string

const (
	OpInsert ChangeOp = "INSERT"
	OpUpdate ChangeOp = "UPDATE"
	OpDelete ChangeOp = "DELETE"
)
