package rbac

// Can reports whether an identity with role and power may perform op on
// resource. Pass OpAny to ask only whether the role reaches the resource.
//
// Unknown roles and powers are denied before anything else. Admins always
// read and always create tasks, whatever their power level.
func Can(role Role, power Power, resource Resource, op Operation) bool {
	roleCfg, ok := roleConfigs[role]
	if !ok {
		return false
	}
	powerCfg, ok := powerConfigs[power]
	if !ok {
		return false
	}

	if role == RoleAdmin {
		if op == OpRead {
			return true
		}
		if resource == ResourceTasks && op == OpCreate {
			return true
		}
	}

	if !roleCfg.Permissions[resource] {
		return false
	}
	if op == OpAny {
		return true
	}
	return powerCfg.Operations[op]
}

// CanAccess reports whether role reaches resource at all, ignoring power.
func CanAccess(role Role, resource Resource) bool {
	cfg, ok := roleConfigs[role]
	if !ok {
		return false
	}
	return cfg.Permissions[resource]
}
